// Package logger provides structured logging for buildstamp.
//
// Log records go to the diagnostic stream (stderr by default) so that stdout
// carries only the confirmation line, and optionally to an append-only file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
	config  *Config
	closers []io.Closer
}

// Config holds logger configuration
type Config struct {
	Level   string
	Console bool
	File    string
	Format  string    // "json" or "text"
	Output  io.Writer // console destination, os.Stderr when nil
	Color   bool      // colorize console text output
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the default logger instance
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(&Config{
			Level:   "warn",
			Console: true,
			Format:  "text",
		})
	})
	return defaultLogger
}

// New creates a new logger with the given configuration.
// A log file that cannot be opened is reported on the console handler and
// otherwise ignored.
func New(config *Config) *Logger {
	if config == nil {
		config = &Config{
			Level:   "info",
			Console: true,
			Format:  "text",
		}
	}

	level := parseLevel(config.Level)
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var (
		handlers []slog.Handler
		closers  []io.Closer
		fileErr  error
	)

	if config.Console {
		handlers = append(handlers, newHandler(out, config.Format, level, config.Color))
	}

	if config.File != "" {
		f, err := openLogFile(config.File)
		if err != nil {
			fileErr = err
		} else {
			closers = append(closers, f)
			handlers = append(handlers, newHandler(f, config.Format, level, false))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Fall back to the console so failures are never silent
		handler = newHandler(out, config.Format, level, config.Color)
	case 1:
		handler = handlers[0]
	default:
		handler = NewMultiHandler(handlers...)
	}

	l := &Logger{
		Logger:  slog.New(handler),
		config:  config,
		closers: closers,
	}
	if fileErr != nil {
		l.Warn("Log file disabled", "file", config.File, "error", fileErr)
	}
	return l
}

func newHandler(w io.Writer, format string, level slog.Level, color bool) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return NewTextHandler(w, &TextHandlerOptions{Level: level, ColorOutput: color})
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	// Path is from user configuration
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// parseLevel parses a string log level to slog.Level
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRun returns a logger tagged with a fresh run_id, so that the records of
// one invocation can be picked out of a shared log file.
func (l *Logger) WithRun() *Logger {
	return l.with("run_id", uuid.NewString())
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

// WithError returns a logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return l.with("error", err.Error())
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{
		Logger:  l.Logger.With(args...),
		config:  l.config,
		closers: l.closers,
	}
}

// GetConfig returns the logger configuration
func (l *Logger) GetConfig() Config {
	return *l.config
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MultiHandler wraps multiple handlers
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler that writes to multiple handlers
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled reports whether any handler handles records at the given level
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes the record to every handler that accepts its level
//
//nolint:gocritic // slog.Handler interface requires value receiver
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// WithAttrs returns a new Handler with the given attributes added
func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return NewMultiHandler(handlers...)
}

// WithGroup returns a new Handler with the given group name
func (h *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return NewMultiHandler(handlers...)
}
