package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// NewRouter - mounts the session API and the result API.
func NewRouter(logger *slog.Logger, sessions sessionRegistry, results resultService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	ping := NewPingHandler()
	r.Get("/", ping.HealthHandler)
	r.Get("/ping", ping.PingHandler)

	s := &sessionHandlers{logger: logger.With("component", "session_handlers"), sessions: sessions}
	r.Route("/api/users/{userID}/session", func(r chi.Router) {
		r.Get("/", s.state)
		r.Post("/mark", s.selectMark)
		r.Post("/difficulty", s.selectDifficulty)
		r.Post("/start", s.start)
		r.Post("/reset", s.reset)
		r.Post("/setup", s.setup)
		r.Post("/move", s.move)
	})

	h := &resultHandlers{logger: logger.With("component", "result_handlers"), results: results}
	r.Post("/game-result", h.recordResult)
	r.Get("/user/{userID}/stats", h.stats)
	r.Get("/user/{userID}/stats/simple", h.simpleStats)
	r.Post("/promo-code/validate", h.validatePromoCode)
	r.Get("/leaderboard", h.leaderboard)

	return r
}

// Start - serves handler on port until ctx is done.
func Start(ctx context.Context, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Debug("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Detail: msg})
}
