package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/rose-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
)

// SessionRegistry keeps one GameManager per chat user.
type SessionRegistry struct {
	logger *slog.Logger
	stats  StatsSource
	deps   Dependencies

	mu       sync.Mutex
	managers map[int64]*GameManager
}

func NewSessionRegistry(logger *slog.Logger, stats StatsSource, deps Dependencies) *SessionRegistry {
	return &SessionRegistry{
		logger:   logger.With("component", "session_registry"),
		stats:    stats,
		deps:     deps.withDefaults(),
		managers: make(map[int64]*GameManager),
	}
}

// GetOrCreate - returns the user's manager, seeding a new one with the
// stored tally. A failing stats source starts the user from zero.
func (that *SessionRegistry) GetOrCreate(ctx context.Context, user entity.User) (*GameManager, error) {
	log := that.logger.With("method", "GetOrCreate", "user_id", user.ID)

	if user.ID <= 0 {
		return nil, fmt.Errorf("%w: %d", apperror.ErrInvalidUserID, user.ID)
	}

	if manager, err := that.Get(user.ID); err == nil {
		return manager, nil
	}

	var tally entity.Tally
	if that.stats != nil {
		loaded, err := that.stats.LoadStats(ctx, user.ID)
		if err != nil {
			log.Warn("failed to load stats, starting from zero", "error", err)
		} else {
			tally = loaded
		}
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if manager, ok := that.managers[user.ID]; ok {
		return manager, nil
	}

	manager := NewGameManager(that.logger, user, tally, that.deps)
	that.managers[user.ID] = manager

	log.Info("session created", "wins", tally.Wins, "losses", tally.Losses, "draws", tally.Draws)

	return manager, nil
}

func (that *SessionRegistry) Get(userID int64) (*GameManager, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	manager, ok := that.managers[userID]
	if !ok {
		return nil, apperror.ErrSessionNotFound
	}

	return manager, nil
}

// Close - cancels every pending computer turn and waits for reports.
func (that *SessionRegistry) Close() {
	that.mu.Lock()
	managers := make([]*GameManager, 0, len(that.managers))
	for _, manager := range that.managers {
		managers = append(managers, manager)
	}
	that.mu.Unlock()

	for _, manager := range managers {
		manager.Close()
		manager.Wait()
	}
}
