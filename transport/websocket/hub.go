package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
)

const (
	actionSessionState = "session:state"
	actionFeedback     = "feedback"
)

// Message is what both sides exchange, one per text frame.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client is one upgraded connection. Writes are serialised by mu.
type client struct {
	id     string
	userID int64

	mu   sync.Mutex
	conn *websocket.Conn
}

func (that *client) send(action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if err = websocket.JSON.Send(that.conn, Message{Action: action, Payload: body}); err != nil {
		return fmt.Errorf("failed to send %s: %w", action, err)
	}

	return nil
}

type feedbackPayload struct {
	Kind entity.FeedbackKind `json:"kind"`
}

// Hub fans session changes and feedback out to every connection of a user.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[int64]map[string]*client

	// pushMu orders session pushes; versions holds the last one sent per user.
	pushMu   sync.Mutex
	versions map[int64]uint64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger.With("component", "ws_hub"),
		clients:  make(map[int64]map[string]*client),
		versions: make(map[int64]uint64),
	}
}

func (that *Hub) attach(userID int64, c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.clients[userID] == nil {
		that.clients[userID] = make(map[string]*client)
	}
	that.clients[userID][c.id] = c
}

func (that *Hub) detach(userID int64, c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.clients[userID], c.id)
	if len(that.clients[userID]) == 0 {
		delete(that.clients, userID)
	}
}

func (that *Hub) connections(userID int64) []*client {
	that.mu.RLock()
	defer that.mu.RUnlock()

	out := make([]*client, 0, len(that.clients[userID]))
	for _, c := range that.clients[userID] {
		out = append(out, c)
	}

	return out
}

// SessionChanged - pushes the new session to the user's connections. A
// session that is not newer than the last one pushed is dropped.
func (that *Hub) SessionChanged(userID int64, session entity.Session) {
	that.pushMu.Lock()
	defer that.pushMu.Unlock()

	if last, ok := that.versions[userID]; ok && session.Version <= last {
		that.logger.Debug("stale session push dropped",
			"user_id", userID, "version", session.Version, "last_version", last)
		return
	}
	that.versions[userID] = session.Version

	that.broadcast(userID, actionSessionState, session)
}

// Notify - pushes a haptic feedback hint.
func (that *Hub) Notify(userID int64, kind entity.FeedbackKind) {
	that.broadcast(userID, actionFeedback, feedbackPayload{Kind: kind})
}

func (that *Hub) broadcast(userID int64, action string, payload any) {
	log := that.logger.With("method", "broadcast", "user_id", userID, "action", action)

	for _, c := range that.connections(userID) {
		if err := c.send(action, payload); err != nil {
			log.Warn("failed to push message", "connection_id", c.id, "error", err)
		}
	}
}
