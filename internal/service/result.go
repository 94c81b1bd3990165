package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rocketscienceinc/rose-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100

	maxPromoAttempts = 10
)

type resultRepo interface {
	Save(ctx context.Context, result *entity.GameResult) error
	GetStats(ctx context.Context, userID int64) (entity.UserStats, error)
	GetTally(ctx context.Context, userID int64) (entity.Tally, error)
	UsePromoCode(ctx context.Context, code string, userID int64) (entity.PromoCode, error)
	Leaderboard(ctx context.Context, limit int) ([]entity.LeaderboardEntry, error)
}

type statsRepo interface {
	Increment(ctx context.Context, userID int64, status entity.Status) error
	Set(ctx context.Context, userID int64, tally entity.Tally) error
	GetByUserID(ctx context.Context, userID int64) (entity.Tally, error)
}

// ResultService stores finished games in SQLite and mirrors the tally in
// redis. statsRepo may be nil.
type ResultService struct {
	logger     *slog.Logger
	resultRepo resultRepo
	statsRepo  statsRepo
	rnd        Rand
}

func NewResultService(logger *slog.Logger, resultRepo resultRepo, statsRepo statsRepo, rnd Rand) *ResultService {
	return &ResultService{
		logger:     logger.With("component", "result_service"),
		resultRepo: resultRepo,
		statsRepo:  statsRepo,
		rnd:        rnd,
	}
}

// RecordResult - stores a finished game. A win always ends up with a unique
// promo code: the client's one when it is well formed and free, a fresh one
// otherwise.
func (that *ResultService) RecordResult(ctx context.Context, result entity.GameResult) (entity.GameResult, error) {
	log := that.logger.With("method", "RecordResult", "user_id", result.UserID)

	if result.UserID <= 0 {
		return entity.GameResult{}, fmt.Errorf("%w: %d", apperror.ErrInvalidUserID, result.UserID)
	}
	if _, err := entity.ParseResultStatus(string(result.Status)); err != nil {
		return entity.GameResult{}, err
	}
	if _, err := entity.ParseDifficulty(string(result.Difficulty)); err != nil {
		return entity.GameResult{}, err
	}

	if result.Status != entity.StatusWin {
		result.PromoCode = ""
	} else if !IsPromoCode(result.PromoCode) {
		result.PromoCode = GeneratePromoCode(that.rnd)
	}

	var err error
	for attempt := 0; attempt < maxPromoAttempts; attempt++ {
		err = that.resultRepo.Save(ctx, &result)
		if !errors.Is(err, apperror.ErrPromoCodeTaken) {
			break
		}

		log.Debug("promo code taken, generating another", "code", result.PromoCode)
		result.PromoCode = GeneratePromoCode(that.rnd)
	}
	if err != nil {
		return entity.GameResult{}, fmt.Errorf("failed to save game result: %w", err)
	}

	that.bumpTally(ctx, result)

	log.Info("game result recorded", "status", result.Status, "difficulty", result.Difficulty)

	return result, nil
}

// bumpTally - increments the cached tally, or rebuilds it from SQLite when
// redis has none, so a partial hash is never served.
func (that *ResultService) bumpTally(ctx context.Context, result entity.GameResult) {
	if that.statsRepo == nil {
		return
	}

	log := that.logger.With("method", "bumpTally", "user_id", result.UserID)

	err := that.statsRepo.Increment(ctx, result.UserID, result.Status)
	if err == nil {
		return
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		log.Error("failed to bump tally", "error", err)
		return
	}

	tally, err := that.resultRepo.GetTally(ctx, result.UserID)
	if err != nil {
		log.Error("failed to count results", "error", err)
		return
	}

	if err = that.statsRepo.Set(ctx, result.UserID, tally); err != nil {
		log.Error("failed to rebuild tally", "error", err)
	}
}

// ReportResult - lets the service serve as the session's result reporter.
func (that *ResultService) ReportResult(ctx context.Context, result entity.GameResult) (entity.GameResult, error) {
	return that.RecordResult(ctx, result)
}

func (that *ResultService) GetStats(ctx context.Context, userID int64) (entity.UserStats, error) {
	stats, err := that.resultRepo.GetStats(ctx, userID)
	if err != nil {
		return entity.UserStats{}, fmt.Errorf("failed to get stats: %w", err)
	}

	return stats, nil
}

// GetSimpleStats - reads the redis tally and rebuilds it from SQLite on a
// miss.
func (that *ResultService) GetSimpleStats(ctx context.Context, userID int64) (entity.Tally, error) {
	log := that.logger.With("method", "GetSimpleStats", "user_id", userID)

	if that.statsRepo != nil {
		tally, err := that.statsRepo.GetByUserID(ctx, userID)
		if err == nil {
			return tally, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			log.Warn("failed to read tally from redis", "error", err)
		}
	}

	tally, err := that.resultRepo.GetTally(ctx, userID)
	if err != nil {
		return entity.Tally{}, fmt.Errorf("failed to count results: %w", err)
	}

	if that.statsRepo != nil && tally.Total() > 0 {
		if err = that.statsRepo.Set(ctx, userID, tally); err != nil {
			log.Warn("failed to refill tally", "error", err)
		}
	}

	return tally, nil
}

// LoadStats - lets the service seed new sessions.
func (that *ResultService) LoadStats(ctx context.Context, userID int64) (entity.Tally, error) {
	return that.GetSimpleStats(ctx, userID)
}

func (that *ResultService) ValidatePromoCode(ctx context.Context, code string, userID int64) (entity.PromoCode, error) {
	log := that.logger.With("method", "ValidatePromoCode", "user_id", userID)

	promo, err := that.resultRepo.UsePromoCode(ctx, code, userID)
	if err != nil {
		return promo, fmt.Errorf("failed to validate promo code: %w", err)
	}

	log.Info("promo code redeemed", "code", code)

	return promo, nil
}

// Leaderboard - non-positive limits fall back to the default, large ones
// are capped.
func (that *ResultService) Leaderboard(ctx context.Context, limit int) ([]entity.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		limit = MaxLeaderboardLimit
	}

	entries, err := that.resultRepo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	return entries, nil
}

// IsPromoCode - reports whether code is a 5-digit number in [10000, 99999].
func IsPromoCode(code string) bool {
	if len(code) != 5 {
		return false
	}

	n, err := strconv.Atoi(code)

	return err == nil && n >= 10000 && n <= 99999
}
