// Package logging provides structured logging for notisync.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
)

// Logger is the structured logging interface used across the sync engine.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)
	// Info logs an informational message.
	Info(msg string, args ...any)
	// Warn logs a warning message.
	Warn(msg string, args ...any)
	// Error logs an error message.
	Error(msg string, args ...any)
	// With returns a new logger with additional key-value pairs.
	With(args ...any) Logger
}

// Config holds logging configuration.
type Config struct {
	// Enabled determines whether logging is active.
	Enabled bool
	// Level is the minimum log level to record.
	Level string
	// JSON switches output to JSON formatting, used for file logs.
	JSON bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Level:   "info",
	}
}

// loggerImpl is the charmbracelet/log based implementation.
type loggerImpl struct {
	clogger *clog.Logger
}

// New creates a Logger writing to w with the given configuration.
// If cfg.Enabled is false, returns a no-op logger.
func New(w io.Writer, cfg Config) Logger {
	if !cfg.Enabled {
		return noopLogger{}
	}
	clogger := clog.NewWithOptions(w, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           parseLevel(cfg.Level),
	})
	if cfg.JSON {
		clogger.SetFormatter(clog.JSONFormatter)
	}
	return &loggerImpl{clogger: clogger}
}

// NewStderr creates a Logger writing to standard error.
func NewStderr(cfg Config) Logger {
	return New(os.Stderr, cfg)
}

// Noop returns a logger that discards all output.
func Noop() Logger {
	return noopLogger{}
}

// parseLevel converts a string level to clog.Level.
func parseLevel(level string) clog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return clog.DebugLevel
	case "info":
		return clog.InfoLevel
	case "warn", "warning":
		return clog.WarnLevel
	case "error":
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}

func (l *loggerImpl) Debug(msg string, args ...any) { l.clogger.Debug(msg, args...) }
func (l *loggerImpl) Info(msg string, args ...any)  { l.clogger.Info(msg, args...) }
func (l *loggerImpl) Warn(msg string, args ...any)  { l.clogger.Warn(msg, args...) }
func (l *loggerImpl) Error(msg string, args ...any) { l.clogger.Error(msg, args...) }

func (l *loggerImpl) With(args ...any) Logger {
	return &loggerImpl{clogger: l.clogger.With(args...)}
}

// noopLogger is a logger that discards all output.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}
func (noopLogger) With(args ...any) Logger       { return noopLogger{} }
