package main

import (
	"fmt"
	"log/slog"
	"os"

	app "github.com/rocketscienceinc/rose-tictactoe/internal"
	"github.com/rocketscienceinc/rose-tictactoe/internal/config"
)

const defaultConfigPath = "config.yml"

// main - loads config.yml (or CONFIG_PATH), builds the logger and runs the game server.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	conf := config.MustLoad(path)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: conf.SlogLevel()}))

	if err := app.RunApp(logger, conf); err != nil {
		panic(fmt.Errorf("app run failed: %w", err))
	}
}
