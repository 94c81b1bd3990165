package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/rocketscienceinc/rose-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
)

type ResultRepository interface {
	// Save stores the result with its user and promo code in one
	// transaction. A taken promo code yields apperror.ErrPromoCodeTaken.
	Save(ctx context.Context, result *entity.GameResult) error
	GetStats(ctx context.Context, userID int64) (entity.UserStats, error)
	GetTally(ctx context.Context, userID int64) (entity.Tally, error)
	UsePromoCode(ctx context.Context, code string, userID int64) (entity.PromoCode, error)
	Leaderboard(ctx context.Context, limit int) ([]entity.LeaderboardEntry, error)
}

type resultRepository struct {
	conn *sql.DB
	now  func() time.Time
}

func NewResultRepository(conn *sql.DB) ResultRepository {
	return &resultRepository{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (that *resultRepository) Save(ctx context.Context, result *entity.GameResult) (err error) {
	tx, err := that.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := that.now()

	if err = saveUser(ctx, tx, entity.User{ID: result.UserID, Username: result.Username}, now); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO game_results (user_id, status, difficulty, promo_code, created_at) VALUES (?, ?, ?, NULLIF(?, ''), ?)`,
		result.UserID, result.Status, result.Difficulty, result.PromoCode, now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("can't save game result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("can't read game result id: %w", err)
	}

	if result.PromoCode != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO promo_codes (code, user_id, game_result_id, created_at) VALUES (?, ?, ?, ?)`,
			result.PromoCode, result.UserID, id, now.Unix(),
		)
		if isConstraintViolation(err) {
			err = apperror.ErrPromoCodeTaken
			return err
		}
		if err != nil {
			return fmt.Errorf("can't save promo code: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit game result: %w", err)
	}

	result.ID = id
	result.CreatedAt = time.Unix(now.Unix(), 0).UTC()

	return nil
}

// GetStats - unknown users get zeroed stats.
func (that *resultRepository) GetStats(ctx context.Context, userID int64) (entity.UserStats, error) {
	stats := entity.UserStats{UserID: userID}

	user, err := NewUserRepository(that.conn).Find(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	stats.Username = user.Username

	tally, err := that.GetTally(ctx, userID)
	if err != nil {
		return stats, err
	}

	stats.Wins = tally.Wins
	stats.Losses = tally.Losses
	stats.Draws = tally.Draws
	stats.TotalGames = tally.Total()
	if stats.TotalGames > 0 {
		stats.WinRate = winRate(tally.Wins, stats.TotalGames)
	}

	var favorite string
	err = that.conn.QueryRowContext(ctx,
		`SELECT difficulty FROM game_results WHERE user_id = ?
			GROUP BY difficulty ORDER BY COUNT(*) DESC, MIN(id) ASC LIMIT 1`,
		userID,
	).Scan(&favorite)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return stats, fmt.Errorf("can't find favorite difficulty: %w", err)
	default:
		difficulty := entity.Difficulty(favorite)
		stats.FavoriteDifficulty = &difficulty
	}

	return stats, nil
}

func (that *resultRepository) GetTally(ctx context.Context, userID int64) (entity.Tally, error) {
	query := `SELECT
			COALESCE(SUM(CASE WHEN status = 'win' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'loss' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'draw' THEN 1 ELSE 0 END), 0)
		FROM game_results WHERE user_id = ?`

	var tally entity.Tally
	if err := that.conn.QueryRowContext(ctx, query, userID).Scan(&tally.Wins, &tally.Losses, &tally.Draws); err != nil {
		return entity.Tally{}, fmt.Errorf("can't count game results: %w", err)
	}

	return tally, nil
}

// UsePromoCode - marks the user's unused code as used and returns it.
func (that *resultRepository) UsePromoCode(ctx context.Context, code string, userID int64) (entity.PromoCode, error) {
	now := that.now()

	res, err := that.conn.ExecContext(ctx,
		`UPDATE promo_codes SET is_used = 1, used_at = ? WHERE code = ? AND user_id = ? AND is_used = 0`,
		now.Unix(), code, userID,
	)
	if err != nil {
		return entity.PromoCode{}, fmt.Errorf("can't use promo code: %w", err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return entity.PromoCode{}, fmt.Errorf("can't use promo code: %w", err)
	}

	promo, err := that.findPromoCode(ctx, code, userID)
	if err != nil {
		return entity.PromoCode{}, err
	}

	if updated == 0 {
		return promo, apperror.ErrPromoCodeUsed
	}

	return promo, nil
}

func (that *resultRepository) findPromoCode(ctx context.Context, code string, userID int64) (entity.PromoCode, error) {
	var (
		promo     entity.PromoCode
		resultID  sql.NullInt64
		usedAt    sql.NullInt64
		createdAt int64
	)

	err := that.conn.QueryRowContext(ctx,
		`SELECT code, user_id, game_result_id, is_used, used_at, created_at FROM promo_codes WHERE code = ? AND user_id = ?`,
		code, userID,
	).Scan(&promo.Code, &promo.UserID, &resultID, &promo.IsUsed, &usedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.PromoCode{}, apperror.ErrPromoCodeNotFound
	}
	if err != nil {
		return entity.PromoCode{}, fmt.Errorf("can't find promo code: %w", err)
	}

	promo.GameResultID = resultID.Int64
	promo.CreatedAt = time.Unix(createdAt, 0).UTC()
	if usedAt.Valid {
		used := time.Unix(usedAt.Int64, 0).UTC()
		promo.UsedAt = &used
	}

	return promo, nil
}

func (that *resultRepository) Leaderboard(ctx context.Context, limit int) ([]entity.LeaderboardEntry, error) {
	rows, err := that.conn.QueryContext(ctx,
		`SELECT u.id, u.username, COUNT(r.id) AS wins
			FROM users u JOIN game_results r ON r.user_id = u.id
			WHERE r.status = 'win'
			GROUP BY u.id, u.username
			ORDER BY wins DESC, u.id ASC
			LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("can't load leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]entity.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var (
			entry    entity.LeaderboardEntry
			username sql.NullString
		)
		if err = rows.Scan(&entry.UserID, &username, &entry.Wins); err != nil {
			return nil, fmt.Errorf("can't scan leaderboard row: %w", err)
		}

		entry.Username = username.String
		if !username.Valid {
			entry.Username = fmt.Sprintf("User_%d", entry.UserID)
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read leaderboard: %w", err)
	}

	return entries, nil
}

// winRate - percentage rounded to two decimals.
func winRate(wins, total int) float64 {
	return math.Round(float64(wins)/float64(total)*10000) / 100
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
