package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults without a file", func(t *testing.T) {
		conf, err := Load(filepath.Join(t.TempDir(), "missing.yml"))

		require.NoError(t, err)
		assert.Equal(t, "info", conf.LogLevel)
		assert.Equal(t, 600*time.Millisecond, conf.ComputerDelay)
		assert.Equal(t, 5*time.Second, conf.ReportTimeout)
		assert.Empty(t, conf.Redis.GetRedisAddr())
		assert.Empty(t, conf.TelegramBotToken)
	})

	t.Run("File values with env override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte(
			"log-level: debug\n"+
				"computer-delay: 1s\n"+
				"backend-url: http://results.local\n"+
				"web-app-url: https://rose.example.com\n"+
				"redis:\n  host: cache\n  port: \"6380\"\n",
		), 0o600))
		t.Setenv("HTTP_PORT", "8080")
		t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

		conf, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, time.Second, conf.ComputerDelay)
		assert.Equal(t, "http://results.local", conf.BackendURL)
		assert.Equal(t, "8080", conf.HTTPPort)
		assert.Equal(t, "cache:6380", conf.Redis.GetRedisAddr())
		assert.Equal(t, "123:abc", conf.TelegramBotToken)
		assert.Equal(t, "https://rose.example.com", conf.WebAppURL)
	})
}

func TestConfig_SlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	} {
		t.Run(level, func(t *testing.T) {
			conf := &Config{LogLevel: level}

			assert.Equal(t, want, conf.SlogLevel())
		})
	}
}
