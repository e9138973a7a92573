package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// LogLevels splits verbosity between the terminal and the log file so the
// CLI output stays readable while the file keeps the full trail.
type LogLevels struct {
	Stderr slog.Level
	File   slog.Level
}

// Levels returns the log levels for the configured level. Without verbose,
// stderr only carries warnings and errors.
func (c Config) Levels(verbose bool) LogLevels {
	stderr := slog.LevelWarn
	if verbose {
		stderr = min(c.LogLevel, slog.LevelDebug)
	}
	return LogLevels{Stderr: stderr, File: c.LogLevel}
}

// SetupLogger creates a dual-output logger: text to stderr, JSON to file.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(logFile string, levels LogLevels) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levels.Stderr,
	})

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Fall back to stderr-only if file fails
		slog.New(stderrHandler).Warn("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), func() error { return nil }
	}

	logger := SetupLoggerWithWriters(os.Stderr, file, levels)
	return logger, file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, levels LogLevels) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: levels.Stderr})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: levels.File})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)).With("app", "clipforge")
}
