// Package config loads clipforge settings from defaults, a YAML file and
// environment variables, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// State backends for client-side bookmarks.
const (
	StateBackendFile   = "file"
	StateBackendRedis  = "redis"
	StateBackendMemory = "memory"
)

// ErrInvalidConfig is returned by Validate. Use errors.Is() to check.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration values.
type Config struct {
	// Backend
	ServerURL     string        `yaml:"server_url"`
	APIToken      string        `yaml:"api_token"`
	ClientTimeout time.Duration `yaml:"client_timeout"`
	ProjectID     string        `yaml:"project_id"`

	// Polling
	PollInterval  time.Duration `yaml:"poll_interval"`
	RunLogLimit   int           `yaml:"run_log_limit"`
	NoticeTTL     time.Duration `yaml:"notice_ttl"`
	EventsEnabled bool          `yaml:"events_enabled"`

	// Client-side state
	StateBackend string `yaml:"state_backend"`
	StateFile    string `yaml:"state_file"`
	RedisURL     string `yaml:"redis_url"`

	// Export bucket
	MinIOEndpoint  string `yaml:"minio_endpoint"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOBucket    string `yaml:"minio_bucket"`
	MinIOUseSSL    bool   `yaml:"minio_use_ssl"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
	LevelRaw string     `yaml:"log_level"`

	// Path the YAML layer was read from, empty if none.
	Source string `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	dir := configDir()
	return Config{
		ServerURL:     "http://localhost:8080",
		ClientTimeout: 30 * time.Second,
		PollInterval:  time.Second,
		RunLogLimit:   50,
		NoticeTTL:     6 * time.Second,
		EventsEnabled: true,
		StateBackend:  StateBackendFile,
		StateFile:     filepath.Join(dir, "state.json"),
		MinIOBucket:   "clipforge-exports",
		LogFile:       filepath.Join(os.TempDir(), "clipforge.log"),
		LogLevel:      slog.LevelInfo,
		LevelRaw:      "INFO",
	}
}

// Load reads configuration: defaults, then the YAML file named by
// CLIPFORGE_CONFIG (default ~/.config/clipforge/config.yaml), then
// CLIPFORGE_* environment variables. A missing file is not an error.
func Load() (Config, error) {
	cfg := Defaults()
	path := getEnv("CLIPFORGE_CONFIG", filepath.Join(configDir(), "config.yaml"))
	if err := cfg.mergeFile(path); err != nil {
		return cfg, err
	}
	cfg.mergeEnv()
	cfg.LogLevel = parseLogLevel(cfg.LevelRaw)
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.Source = path
	return nil
}

func (c *Config) mergeEnv() {
	c.ServerURL = getEnv("CLIPFORGE_SERVER_URL", c.ServerURL)
	c.APIToken = getEnv("CLIPFORGE_API_TOKEN", c.APIToken)
	c.ClientTimeout = getDuration("CLIPFORGE_CLIENT_TIMEOUT", c.ClientTimeout)
	c.ProjectID = getEnv("CLIPFORGE_PROJECT", c.ProjectID)

	c.PollInterval = getDuration("CLIPFORGE_POLL_INTERVAL", c.PollInterval)
	c.RunLogLimit = getInt("CLIPFORGE_RUN_LOG_LIMIT", c.RunLogLimit)
	c.NoticeTTL = getDuration("CLIPFORGE_NOTICE_TTL", c.NoticeTTL)
	c.EventsEnabled = getBool("CLIPFORGE_EVENTS", c.EventsEnabled)

	c.StateBackend = getEnv("CLIPFORGE_STATE_BACKEND", c.StateBackend)
	c.StateFile = getEnv("CLIPFORGE_STATE_FILE", c.StateFile)
	c.RedisURL = getEnv("CLIPFORGE_REDIS_URL", c.RedisURL)

	c.MinIOEndpoint = getEnv("CLIPFORGE_MINIO_ENDPOINT", c.MinIOEndpoint)
	c.MinIOAccessKey = getEnv("CLIPFORGE_MINIO_ACCESS_KEY", c.MinIOAccessKey)
	c.MinIOSecretKey = getEnv("CLIPFORGE_MINIO_SECRET_KEY", c.MinIOSecretKey)
	c.MinIOBucket = getEnv("CLIPFORGE_MINIO_BUCKET", c.MinIOBucket)
	c.MinIOUseSSL = getBool("CLIPFORGE_MINIO_USE_SSL", c.MinIOUseSSL)

	c.LogFile = getEnv("CLIPFORGE_LOG_FILE", c.LogFile)
	c.LevelRaw = getEnv("CLIPFORGE_LOG_LEVEL", c.LevelRaw)
}

// Validate checks values that would otherwise fail later and less clearly.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server url %q must be http(s)://host", ErrInvalidConfig, c.ServerURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.ClientTimeout <= 0 {
		return fmt.Errorf("%w: client timeout must be positive", ErrInvalidConfig)
	}
	if c.RunLogLimit < 1 {
		return fmt.Errorf("%w: run log limit must be at least 1", ErrInvalidConfig)
	}
	switch c.StateBackend {
	case StateBackendFile:
		if c.StateFile == "" {
			return fmt.Errorf("%w: state file required for file backend", ErrInvalidConfig)
		}
	case StateBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: redis url required for redis backend", ErrInvalidConfig)
		}
	case StateBackendMemory:
	default:
		return fmt.Errorf("%w: unknown state backend %q", ErrInvalidConfig, c.StateBackend)
	}
	return nil
}

// MinIOConfigured reports whether exports can be uploaded.
func (c Config) MinIOConfigured() bool {
	return c.MinIOEndpoint != "" && c.MinIOBucket != ""
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "clipforge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clipforge"
	}
	return filepath.Join(home, ".config", "clipforge")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
