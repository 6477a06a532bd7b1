package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeAll, cfg.RunMode)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "documents", cfg.Redis.NotificationChannel)
	assert.Equal(t, []string{BackendVespa}, cfg.Index.Backends)
	assert.Equal(t, LockRedis, cfg.LockBackend)
	assert.False(t, cfg.ConnectorsEnabled())
	assert.Equal(t, []string{".exe", ".bat", ".ics"}, cfg.Gmail.ExcludedExtensions)
	assert.Equal(t, []string{".exe", ".bat", ".tmp"}, cfg.Drive.ExcludedExtensions)
	assert.Equal(t, -1, cfg.Gmail.FetchLimit)
	assert.Equal(t, int64(500), cfg.Gmail.PageSize)
	assert.Equal(t, 20, cfg.Gmail.MessageConcurrency)
	assert.Equal(t, 30*time.Minute, cfg.Drive.PollInterval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("RUN_MODE", "worker")
	t.Setenv("PORT", "9090")
	t.Setenv("INDEX_BACKENDS", " vespa , PGVECTOR-OLLAMA,,")
	t.Setenv("GMAIL_ENABLED", "yes")
	t.Setenv("GMAIL_FETCH_LIMIT", "25")
	t.Setenv("GMAIL_POLL_INTERVAL", "90s")
	t.Setenv("GMAIL_MESSAGE_CONCURRENCY", "4")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("LOCK_BACKEND", "Postgres")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeWorker, cfg.RunMode)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, []string{BackendVespa, BackendPgvectorOllama}, cfg.Index.Backends)
	assert.True(t, cfg.Gmail.Enabled)
	assert.Equal(t, 25, cfg.Gmail.FetchLimit)
	assert.Equal(t, 90*time.Second, cfg.Gmail.PollInterval)
	assert.Equal(t, 4, cfg.Gmail.MessageConcurrency)
	assert.False(t, cfg.Drive.Enabled)
	assert.Equal(t, LockPostgres, cfg.LockBackend)
	assert.True(t, cfg.Google.Configured())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DRIVE_CONCURRENCY", "many")
	t.Setenv("DRIVE_POLL_INTERVAL", "soon")
	t.Setenv("S3_PATH_STYLE", "maybe")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Drive.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.Drive.PollInterval)
	assert.True(t, cfg.S3.PathStyle)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("NOTIFICATION_CHANNEL=uploads\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("NOTIFICATION_CHANNEL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "uploads", cfg.Redis.NotificationChannel)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown mode", map[string]string{"RUN_MODE": "batch"}},
		{"unknown lock", map[string]string{"LOCK_BACKEND": "etcd"}},
		{"unknown backend", map[string]string{"INDEX_BACKENDS": "elastic"}},
		{"bad port", map[string]string{"PORT": "70000"}},
		{"connector without oauth", map[string]string{"DRIVE_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
