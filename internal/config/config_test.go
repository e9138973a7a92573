package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every lookup at an empty temp dir and clears CLIPFORGE_* vars.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("CLIPFORGE_CONFIG", filepath.Join(dir, "missing.yaml"))
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "CLIPFORGE_") && key != "CLIPFORGE_CONFIG" {
			t.Setenv(key, "")
		}
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 6*time.Second, cfg.NoticeTTL)
	assert.Equal(t, StateBackendFile, cfg.StateBackend)
	assert.Equal(t, filepath.Join(dir, "clipforge", "state.json"), cfg.StateFile)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.Source)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: https://api.example.com
project_id: proj-file
poll_interval: 2s
run_log_limit: 10
state_backend: redis
redis_url: redis://localhost:6379/0
log_level: debug
`), 0644))
	t.Setenv("CLIPFORGE_CONFIG", path)
	t.Setenv("CLIPFORGE_PROJECT", "proj-env")
	t.Setenv("CLIPFORGE_POLL_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "https://api.example.com", cfg.ServerURL)
	assert.Equal(t, "proj-env", cfg.ProjectID, "env overrides file")
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10, cfg.RunLogLimit)
	assert.Equal(t, StateBackendRedis, cfg.StateBackend)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadBadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: [unterminated"), 0644))
	t.Setenv("CLIPFORGE_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scheme", func(c *Config) { c.ServerURL = "ftp://host" }},
		{"no host", func(c *Config) { c.ServerURL = "http://" }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"zero timeout", func(c *Config) { c.ClientTimeout = 0 }},
		{"zero log limit", func(c *Config) { c.RunLogLimit = 0 }},
		{"redis without url", func(c *Config) { c.StateBackend = StateBackendRedis }},
		{"file without path", func(c *Config) { c.StateFile = "" }},
		{"unknown backend", func(c *Config) { c.StateBackend = "etcd" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestLevels(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, LogLevels{Stderr: slog.LevelWarn, File: slog.LevelInfo}, cfg.Levels(false))
	assert.Equal(t, LogLevels{Stderr: slog.LevelDebug, File: slog.LevelInfo}, cfg.Levels(true))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, LogLevels{Stderr: slog.LevelWarn, File: slog.LevelInfo})

	logger.Info("stage submitted", "request_id", "r1")
	logger.Warn("poll failed")

	assert.NotContains(t, stderr.String(), "stage submitted")
	assert.Contains(t, stderr.String(), "poll failed")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "stage submitted", rec["msg"])
	assert.Equal(t, "r1", rec["request_id"])
	assert.Equal(t, "clipforge", rec["app"])
}
