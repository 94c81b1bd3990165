package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/rose-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
	"github.com/rocketscienceinc/rose-tictactoe/internal/usecase"
)

type sessionRegistry interface {
	GetOrCreate(ctx context.Context, user entity.User) (*usecase.GameManager, error)
}

type sessionHandlers struct {
	logger   *slog.Logger
	sessions sessionRegistry
}

type markRequest struct {
	Mark string `json:"mark"`
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty"`
}

type moveRequest struct {
	Cell *int `json:"cell"`
}

func (that *sessionHandlers) state(w http.ResponseWriter, r *http.Request) {
	manager, ok := that.manager(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, manager.State())
}

func (that *sessionHandlers) selectMark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if !decode(w, r, &req) {
		return
	}

	mark, err := entity.ParseMark(req.Mark)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	manager, ok := that.manager(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, manager.SelectMark(mark))
}

func (that *sessionHandlers) selectDifficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if !decode(w, r, &req) {
		return
	}

	difficulty, err := entity.ParseDifficulty(req.Difficulty)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	manager, ok := that.manager(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, manager.SelectDifficulty(difficulty))
}

func (that *sessionHandlers) start(w http.ResponseWriter, r *http.Request) {
	if manager, ok := that.manager(w, r); ok {
		writeJSON(w, http.StatusOK, manager.StartGame())
	}
}

func (that *sessionHandlers) reset(w http.ResponseWriter, r *http.Request) {
	if manager, ok := that.manager(w, r); ok {
		writeJSON(w, http.StatusOK, manager.ResetGame())
	}
}

func (that *sessionHandlers) setup(w http.ResponseWriter, r *http.Request) {
	if manager, ok := that.manager(w, r); ok {
		writeJSON(w, http.StatusOK, manager.GoToSetup())
	}
}

// move - an ignored move is not an error, the unchanged session is returned.
func (that *sessionHandlers) move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Cell == nil {
		writeError(w, http.StatusBadRequest, "cell is required")
		return
	}

	manager, ok := that.manager(w, r)
	if !ok {
		return
	}

	session, _ := manager.MakeMove(*req.Cell)

	writeJSON(w, http.StatusOK, session)
}

func (that *sessionHandlers) manager(w http.ResponseWriter, r *http.Request) (*usecase.GameManager, bool) {
	log := that.logger.With("method", "manager")

	userID, ok := parseUserID(w, r)
	if !ok {
		return nil, false
	}

	manager, err := that.sessions.GetOrCreate(r.Context(), entity.User{
		ID:       userID,
		Username: r.URL.Query().Get("username"),
	})
	if errors.Is(err, apperror.ErrInvalidUserID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err != nil {
		log.Error("failed to get session", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return nil, false
	}

	return manager, true
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, apperror.ErrInvalidUserID.Error())
		return 0, false
	}

	return userID, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}

	return true
}
