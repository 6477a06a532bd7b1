package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApp_Commands(t *testing.T) {
	app := newApp()

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"api", "worker", "connectors", "all"}, names)

	require.Len(t, app.Flags, 1)
	assert.Equal(t, []string{"env-file"}, app.Flags[0].Names()[:1])
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "etcd")

	err := newApp().Run([]string{"info-vault", "worker"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock backend")
}

func TestRun_MissingEnvFile(t *testing.T) {
	err := newApp().Run([]string{"info-vault", "--env-file", "/nonexistent/.env", "api"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env file")
}

func TestNewLogger(t *testing.T) {
	logger := newLogger("json", "debug")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = newLogger("text", "warn")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger = newLogger("text", "chatty")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestDecodeKey(t *testing.T) {
	hexKey := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	assert.Len(t, decodeKey(hexKey), 32)

	raw := "0123456789abcdef0123456789abcdeZ"
	assert.Equal(t, []byte(raw), decodeKey(raw))
}
