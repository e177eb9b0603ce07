package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset = "\033[0m"
	ansiGray  = "\033[90m"
	ansiKey   = "\033[96m"
)

// TextHandler writes one human-readable line per record:
//
//	2024-06-30T13:05:09+02:00 INFO  Build stamped build_number=42
type TextHandler struct {
	opts   *TextHandlerOptions
	writer io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	group  string
}

// TextHandlerOptions are options for the TextHandler
type TextHandlerOptions struct {
	Level       slog.Level
	TimeFormat  string
	ColorOutput bool
}

// NewTextHandler creates a new text handler
func NewTextHandler(w io.Writer, opts *TextHandlerOptions) *TextHandler {
	if opts == nil {
		opts = &TextHandlerOptions{Level: slog.LevelInfo}
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = time.RFC3339
	}
	return &TextHandler{
		opts:   opts,
		writer: w,
		mu:     &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level
func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// Handle formats and writes the log record
//
//nolint:gocritic // slog.Handler interface requires value receiver
func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	h.paint(&sb, ansiGray, r.Time.Format(h.opts.TimeFormat))
	sb.WriteString(" ")
	h.paint(&sb, levelColor(r.Level), formatLevel(r.Level))
	sb.WriteString(" ")
	sb.WriteString(r.Message)

	for _, attr := range h.attrs {
		h.writeAttr(&sb, attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&sb, a)
		return true
	})
	sb.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

// WithAttrs returns a new Handler with the given attributes added
func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	clone := *h
	clone.attrs = merged
	return &clone
}

// WithGroup returns a new Handler with the given group name
func (h *TextHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (h *TextHandler) paint(sb *strings.Builder, color, s string) {
	if !h.opts.ColorOutput {
		sb.WriteString(s)
		return
	}
	sb.WriteString(color)
	sb.WriteString(s)
	sb.WriteString(ansiReset)
}

func (h *TextHandler) writeAttr(sb *strings.Builder, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	sb.WriteString(" ")
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	h.paint(sb, ansiKey, key)
	sb.WriteString("=")
	formatValue(sb, attr.Value.Resolve())
}

// formatLevel pads the level to a fixed width
func formatLevel(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO "
	case slog.LevelWarn:
		return "WARN "
	case slog.LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("%-5s", level.String())
	}
}

// levelColor returns ANSI color code for the level
func levelColor(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "\033[36m" // cyan
	case slog.LevelInfo:
		return "\033[32m" // green
	case slog.LevelWarn:
		return "\033[33m" // yellow
	case slog.LevelError:
		return "\033[31m" // red
	default:
		return ansiReset
	}
}

// formatValue formats an attribute value
func formatValue(sb *strings.Builder, v slog.Value) {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\r\"=") {
			fmt.Fprintf(sb, "%q", s)
		} else {
			sb.WriteString(s)
		}
	case slog.KindTime:
		sb.WriteString(v.Time().Format(time.RFC3339))
	case slog.KindGroup:
		sb.WriteString("{")
		for i, attr := range v.Group() {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(attr.Key)
			sb.WriteString("=")
			formatValue(sb, attr.Value.Resolve())
		}
		sb.WriteString("}")
	default:
		fmt.Fprint(sb, v.Any())
	}
}
