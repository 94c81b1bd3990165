package rest

import (
	"net/http"
	"time"
)

type PingHandler interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
	HealthHandler(w http.ResponseWriter, _ *http.Request)
}

type pingHandler struct {
	now func() time.Time
}

func NewPingHandler() PingHandler {
	return &pingHandler{now: time.Now}
}

func (that *pingHandler) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

type healthResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (that *pingHandler) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Message:   "Rose Tic-Tac-Toe API",
		Timestamp: that.now().UTC(),
	})
}
