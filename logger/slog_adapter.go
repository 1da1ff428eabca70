package logger

import (
	"io"
	"log/slog"
	"strings"
)

// SlogAdapter implements the Logger interface using slog.
type SlogAdapter struct {
	slog *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter.
func NewSlogAdapter(slogLogger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{slog: slogLogger}
}

// New builds a SlogAdapter writing to w. Format is "json" or "text";
// level is one of debug, info, warn, error.
func New(w io.Writer, format, level string) *SlogAdapter {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

// Discard returns a logger that drops every record.
func Discard() *SlogAdapter {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...interface{}) {
	s.slog.Debug(msg, args...)
}

// Info logs an info message.
func (s *SlogAdapter) Info(msg string, args ...interface{}) {
	s.slog.Info(msg, args...)
}

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...interface{}) {
	s.slog.Warn(msg, args...)
}

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...interface{}) {
	s.slog.Error(msg, args...)
}

// With returns a new logger carrying the given key/value pairs.
func (s *SlogAdapter) With(args ...interface{}) Logger {
	return &SlogAdapter{slog: s.slog.With(args...)}
}

// WithComponent returns a new logger with the component field added.
func (s *SlogAdapter) WithComponent(component string) Logger {
	return &SlogAdapter{slog: s.slog.With("component", component)}
}
