package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/rose-tictactoe/internal/config"
	"github.com/rocketscienceinc/rose-tictactoe/internal/repository"
	"github.com/rocketscienceinc/rose-tictactoe/internal/repository/storage"
	"github.com/rocketscienceinc/rose-tictactoe/internal/service"
	"github.com/rocketscienceinc/rose-tictactoe/internal/transport/backend"
	"github.com/rocketscienceinc/rose-tictactoe/internal/transport/telegram"
	"github.com/rocketscienceinc/rose-tictactoe/internal/usecase"
	"github.com/rocketscienceinc/rose-tictactoe/transport/rest"
	"github.com/rocketscienceinc/rose-tictactoe/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}
	defer func() {
		if err = sqliteStorage.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init sqlite storage: %w", err)
	}

	var statsRepo repository.StatsRepository
	if addr := conf.Redis.GetRedisAddr(); addr != "" {
		redisStorage, redisErr := storage.NewRedisStorage(ctx, addr)
		if redisErr != nil {
			log.Warn("Redis unavailable, tally is served from sqlite", "addr", addr, "error", redisErr)
		} else {
			defer func() {
				if closeErr := redisStorage.Close(); closeErr != nil {
					log.Error("could not close redis storage", "error", closeErr)
				}
			}()

			statsRepo = repository.NewStatsRepository(redisStorage.Connection)
		}
	}

	rnd := service.NewRand()
	resultRepo := repository.NewResultRepository(sqliteStorage.Connection)
	resultService := service.NewResultService(logger, resultRepo, statsRepo, rnd)

	var (
		reporter usecase.ResultReporter = resultService
		stats    usecase.StatsSource    = resultService
	)
	if conf.BackendURL != "" {
		client := backend.New(logger, conf.BackendURL, &http.Client{Timeout: conf.ReportTimeout})
		reporter, stats = client, client
		log.Info("Reporting results to remote backend", "url", conf.BackendURL)
	}

	hub := websocket.NewHub(logger)
	sessions := usecase.NewSessionRegistry(logger, stats, usecase.Dependencies{
		Scheduler:     usecase.NewScheduler(),
		Rand:          rnd,
		Feedback:      hub,
		Reporter:      reporter,
		Observer:      hub,
		ComputerDelay: conf.ComputerDelay,
		ReportTimeout: conf.ReportTimeout,
	})
	defer sessions.Close()

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort, rest.NewRouter(logger, sessions, resultService)); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, sessions, hub)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	// run Telegram launcher
	if conf.TelegramBotToken != "" {
		launcher, botErr := telegram.New(logger, conf.TelegramBotToken, conf.WebAppURL)
		if botErr != nil {
			log.Warn("Telegram bot disabled", "error", botErr)
		} else {
			go launcher.Start(ctx)
		}
	}

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
