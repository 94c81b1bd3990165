package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
	"github.com/rocketscienceinc/rose-tictactoe/internal/pkg"
	"github.com/rocketscienceinc/rose-tictactoe/internal/usecase"
)

const (
	shutdownTimeout = 5 * time.Second
	maxPayloadBytes = 1 << 16
)

type sessionRegistry interface {
	GetOrCreate(ctx context.Context, user entity.User) (*usecase.GameManager, error)
}

type handlerFunc func(ctx context.Context, c *client, msg *Message) error

type Server struct {
	logger   *slog.Logger
	sessions sessionRegistry
	hub      *Hub

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, sessions sessionRegistry, hub *Hub) *Server {
	server := &Server{
		logger:   logger.With("component", "ws_server"),
		sessions: sessions,
		hub:      hub,
	}

	server.handlers = map[string]handlerFunc{
		actionConnect:    server.handleConnect,
		actionMark:       server.handleMark,
		actionDifficulty: server.handleDifficulty,
		actionStart:      server.handleStart,
		actionReset:      server.handleReset,
		actionSetup:      server.handleSetup,
		actionMove:       server.handleMove,
	}

	return server
}

// Handler - serves the upgrade endpoint on /ws. The mini-app is embedded in
// a chat client webview, so any Origin is accepted.
func (that *Server) Handler(ctx context.Context) http.Handler {
	ws := websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			that.handleConn(ctx, conn)
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ws.ServeHTTP(w, r)
	})

	return mux
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
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

func (that *Server) handleConn(ctx context.Context, conn *websocket.Conn) {
	conn.MaxPayloadBytes = maxPayloadBytes

	c := &client{id: pkg.GenerateConnectionID(), conn: conn}
	log := that.logger.With("method", "handleConn", "connection_id", c.id)

	log.Info("WebSocket connection established")

	defer func() {
		if c.userID != 0 {
			that.hub.detach(c.userID, c)
		}
		_ = conn.Close()
		log.Info("WebSocket connection closed")
	}()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	if err := that.handleMessages(connCtx, c); err != nil {
		log.Error("error handling messages", "error", err)
	}
}

// handleMessages - processes messages until the client goes away.
func (that *Server) handleMessages(ctx context.Context, c *client) error {
	log := that.logger.With("method", "handleMessages", "connection_id", c.id)

	for {
		var message Message
		err := websocket.JSON.Receive(c.conn, &message)

		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
			log.Warn("failed to unmarshal message", "error", err)
			continue
		default:
			return fmt.Errorf("failed to receive message: %w", err)
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			_ = that.sendError(c, message.Action, "unknown action")
			continue
		}

		if err = handler(ctx, c, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}
