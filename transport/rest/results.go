package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rocketscienceinc/rose-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
)

type resultService interface {
	RecordResult(ctx context.Context, result entity.GameResult) (entity.GameResult, error)
	GetStats(ctx context.Context, userID int64) (entity.UserStats, error)
	GetSimpleStats(ctx context.Context, userID int64) (entity.Tally, error)
	ValidatePromoCode(ctx context.Context, code string, userID int64) (entity.PromoCode, error)
	Leaderboard(ctx context.Context, limit int) ([]entity.LeaderboardEntry, error)
}

type resultHandlers struct {
	logger  *slog.Logger
	results resultService
}

type gameResultRequest struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Status     string `json:"status"`
	Difficulty string `json:"difficulty"`
	PromoCode  string `json:"promo_code"`
}

type simpleStatsResponse struct {
	UserID int64        `json:"user_id"`
	Stats  entity.Tally `json:"stats"`
}

type promoCodeRequest struct {
	Code   string `json:"code"`
	UserID int64  `json:"user_id"`
}

type promoCodeResponse struct {
	Code      string     `json:"code"`
	IsValid   bool       `json:"is_valid"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (that *resultHandlers) recordResult(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "recordResult")

	var req gameResultRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := that.results.RecordResult(r.Context(), entity.GameResult{
		UserID:     req.UserID,
		Username:   req.Username,
		Status:     entity.Status(req.Status),
		Difficulty: entity.Difficulty(req.Difficulty),
		PromoCode:  req.PromoCode,
	})
	switch {
	case errors.Is(err, entity.ErrUnknownStatus),
		errors.Is(err, entity.ErrUnknownDifficulty),
		errors.Is(err, apperror.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Error("failed to record game result", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record game result")
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (that *resultHandlers) stats(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "stats")

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	stats, err := that.results.GetStats(r.Context(), userID)
	if err != nil {
		log.Error("failed to get stats", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve user stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (that *resultHandlers) simpleStats(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "simpleStats")

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	tally, err := that.results.GetSimpleStats(r.Context(), userID)
	if err != nil {
		log.Error("failed to get simple stats", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve user stats")
		return
	}

	writeJSON(w, http.StatusOK, simpleStatsResponse{UserID: userID, Stats: tally})
}

func (that *resultHandlers) validatePromoCode(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "validatePromoCode")

	var req promoCodeRequest
	if !decode(w, r, &req) {
		return
	}

	promo, err := that.results.ValidatePromoCode(r.Context(), req.Code, req.UserID)
	switch {
	case errors.Is(err, apperror.ErrPromoCodeNotFound):
		writeError(w, http.StatusNotFound, apperror.ErrPromoCodeNotFound.Error())
	case errors.Is(err, apperror.ErrPromoCodeUsed):
		writeError(w, http.StatusBadRequest, apperror.ErrPromoCodeUsed.Error())
	case err != nil:
		log.Error("failed to validate promo code", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to validate promo code")
	default:
		writeJSON(w, http.StatusOK, promoCodeResponse{
			Code:      promo.Code,
			IsValid:   true,
			UsedAt:    promo.UsedAt,
			CreatedAt: promo.CreatedAt,
		})
	}
}

func (that *resultHandlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "leaderboard")

	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
	}

	entries, err := that.results.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error("failed to get leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
