package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/rose-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
)

// dbExecutor is satisfied by both *sql.DB and *sql.Tx.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepository interface {
	Save(ctx context.Context, user entity.User) error
	Find(ctx context.Context, id int64) (entity.User, error)
}

type userRepository struct {
	conn *sql.DB
}

func NewUserRepository(conn *sql.DB) UserRepository {
	return &userRepository{
		conn: conn,
	}
}

// Save - inserts the user or refreshes a known one. An empty username never
// overwrites a stored one.
func (that *userRepository) Save(ctx context.Context, user entity.User) error {
	return saveUser(ctx, that.conn, user, time.Now().UTC())
}

func (that *userRepository) Find(ctx context.Context, id int64) (entity.User, error) {
	query := `SELECT id, username FROM users WHERE id = ?`

	var (
		user     entity.User
		username sql.NullString
	)

	err := that.conn.QueryRowContext(ctx, query, id).Scan(&user.ID, &username)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, apperror.ErrNotFound
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("can't find user: %w", err)
	}

	user.Username = username.String

	return user, nil
}

func saveUser(ctx context.Context, db dbExecutor, user entity.User, now time.Time) error {
	query := `INSERT INTO users (id, username, created_at, updated_at) VALUES (?, NULLIF(?, ''), ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = COALESCE(excluded.username, users.username),
			updated_at = excluded.updated_at`

	_, err := db.ExecContext(ctx, query, user.ID, user.Username, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("can't save user: %w", err)
	}

	return nil
}
