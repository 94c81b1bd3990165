package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/rose-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
)

const (
	fieldWins   = "wins"
	fieldLosses = "losses"
	fieldDraws  = "draws"
)

// StatsRepository keeps a quick win/loss/draw tally per user in a redis hash.
type StatsRepository interface {
	// Increment - bumps one counter of an existing tally; apperror.ErrNotFound
	// when the user has none cached.
	Increment(ctx context.Context, userID int64, status entity.Status) error
	Set(ctx context.Context, userID int64, tally entity.Tally) error
	GetByUserID(ctx context.Context, userID int64) (entity.Tally, error)
}

type redisStats struct {
	client *redis.Client
}

func NewStatsRepository(client *redis.Client) StatsRepository {
	return &redisStats{
		client: client,
	}
}

// incrementIfExists leaves a missing hash alone so a partial tally is never
// created; callers rebuild it from the results store instead.
var incrementIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`)

func statsKey(userID int64) string {
	return "stats:" + strconv.FormatInt(userID, 10)
}

func (that *redisStats) Increment(ctx context.Context, userID int64, status entity.Status) error {
	field, err := statusField(status)
	if err != nil {
		return err
	}

	n, err := incrementIfExists.Run(ctx, that.client, []string{statsKey(userID)}, field).Int64()
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", field, err)
	}
	if n < 0 {
		return apperror.ErrNotFound
	}

	return nil
}

func (that *redisStats) Set(ctx context.Context, userID int64, tally entity.Tally) error {
	err := that.client.HSet(ctx, statsKey(userID),
		fieldWins, tally.Wins,
		fieldLosses, tally.Losses,
		fieldDraws, tally.Draws,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set stats: %w", err)
	}

	return nil
}

// GetByUserID - returns apperror.ErrNotFound when the user has no tally yet.
func (that *redisStats) GetByUserID(ctx context.Context, userID int64) (entity.Tally, error) {
	values, err := that.client.HGetAll(ctx, statsKey(userID)).Result()
	if err != nil {
		return entity.Tally{}, fmt.Errorf("failed to get stats: %w", err)
	}

	if len(values) == 0 {
		return entity.Tally{}, apperror.ErrNotFound
	}

	var tally entity.Tally
	for field, target := range map[string]*int{
		fieldWins:   &tally.Wins,
		fieldLosses: &tally.Losses,
		fieldDraws:  &tally.Draws,
	} {
		raw, ok := values[field]
		if !ok {
			continue
		}

		if *target, err = strconv.Atoi(raw); err != nil {
			return entity.Tally{}, fmt.Errorf("corrupted %s counter %q: %w", field, raw, err)
		}
	}

	return tally, nil
}

func statusField(status entity.Status) (string, error) {
	switch status {
	case entity.StatusWin:
		return fieldWins, nil
	case entity.StatusLoss:
		return fieldLosses, nil
	case entity.StatusDraw:
		return fieldDraws, nil
	default:
		return "", fmt.Errorf("%w: %q", entity.ErrUnknownStatus, status)
	}
}
