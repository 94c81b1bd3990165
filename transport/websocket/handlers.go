package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/rose-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
	"github.com/rocketscienceinc/rose-tictactoe/internal/usecase"
)

const (
	actionConnect    = "session:connect"
	actionMark       = "session:mark"
	actionDifficulty = "session:difficulty"
	actionStart      = "session:start"
	actionReset      = "session:reset"
	actionSetup      = "session:setup"
	actionMove       = "session:move"
)

var errNotConnected = errors.New("send session:connect first")

type connectPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type markPayload struct {
	Mark string `json:"mark"`
}

type difficultyPayload struct {
	Difficulty string `json:"difficulty"`
}

type movePayload struct {
	Cell *int `json:"cell"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func (that *Server) handleConnect(ctx context.Context, c *client, msg *Message) error {
	log := that.logger.With("method", "handleConnect", "connection_id", c.id)

	var payload connectPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return that.sendError(c, msg.Action, "malformed payload")
	}

	manager, err := that.sessions.GetOrCreate(ctx, entity.User{ID: payload.UserID, Username: payload.Username})
	if errors.Is(err, apperror.ErrInvalidUserID) {
		return that.sendError(c, msg.Action, err.Error())
	}
	if err != nil {
		log.Error("failed to get session", "user_id", payload.UserID, "error", err)
		return that.sendError(c, msg.Action, "failed to get session")
	}

	if c.userID != 0 && c.userID != payload.UserID {
		that.hub.detach(c.userID, c)
	}
	c.userID = payload.UserID
	that.hub.attach(c.userID, c)

	log.Info("session connected", "user_id", c.userID)

	return c.send(msg.Action, manager.State())
}

func (that *Server) handleMark(ctx context.Context, c *client, msg *Message) error {
	var payload markPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return that.sendError(c, msg.Action, "malformed payload")
	}

	mark, err := entity.ParseMark(payload.Mark)
	if err != nil {
		return that.sendError(c, msg.Action, err.Error())
	}

	return that.withManager(ctx, c, msg, func(manager *usecase.GameManager) entity.Session {
		return manager.SelectMark(mark)
	})
}

func (that *Server) handleDifficulty(ctx context.Context, c *client, msg *Message) error {
	var payload difficultyPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return that.sendError(c, msg.Action, "malformed payload")
	}

	difficulty, err := entity.ParseDifficulty(payload.Difficulty)
	if err != nil {
		return that.sendError(c, msg.Action, err.Error())
	}

	return that.withManager(ctx, c, msg, func(manager *usecase.GameManager) entity.Session {
		return manager.SelectDifficulty(difficulty)
	})
}

func (that *Server) handleStart(ctx context.Context, c *client, msg *Message) error {
	return that.withManager(ctx, c, msg, (*usecase.GameManager).StartGame)
}

func (that *Server) handleReset(ctx context.Context, c *client, msg *Message) error {
	return that.withManager(ctx, c, msg, (*usecase.GameManager).ResetGame)
}

func (that *Server) handleSetup(ctx context.Context, c *client, msg *Message) error {
	return that.withManager(ctx, c, msg, (*usecase.GameManager).GoToSetup)
}

func (that *Server) handleMove(ctx context.Context, c *client, msg *Message) error {
	var payload movePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Cell == nil {
		return that.sendError(c, msg.Action, "cell is required")
	}

	return that.withManager(ctx, c, msg, func(manager *usecase.GameManager) entity.Session {
		session, _ := manager.MakeMove(*payload.Cell)
		return session
	})
}

// withManager - runs op on the connection's session and answers with the
// resulting state.
func (that *Server) withManager(ctx context.Context, c *client, msg *Message, op func(*usecase.GameManager) entity.Session) error {
	if c.userID == 0 {
		return that.sendError(c, msg.Action, errNotConnected.Error())
	}

	manager, err := that.sessions.GetOrCreate(ctx, entity.User{ID: c.userID})
	if err != nil {
		return that.sendError(c, msg.Action, "failed to get session")
	}

	return c.send(msg.Action, op(manager))
}

func (that *Server) sendError(c *client, action, reason string) error {
	if err := c.send(action, errorPayload{Error: reason}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}
