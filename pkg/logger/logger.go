// Package logger provides slog handlers with terminal color output.
// Warnings render yellow, errors red, and graph persistence messages
// green so ingestion progress stands out in long runs.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// highlightedPrefixes lists message prefixes rendered green at info level.
var highlightedPrefixes = []string{
	"Persisting",
	"persisted",
	"Ingested",
	"Episode added",
}

// ColorHandler is a slog.Handler that writes colored text output.
type ColorHandler struct {
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
	w      io.Writer
}

// NewColorHandler creates a handler writing colored log lines to w.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	h := &ColorHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

// NewDefaultLogger creates a logger with colored output on stderr.
func NewDefaultLogger(level slog.Leveler) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ParseLevel converts a config string to a slog level. Unknown strings
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Enabled reports whether the handler handles records at the given level.
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle formats and writes a record.
func (h *ColorHandler) Handle(_ context.Context, record slog.Record) error {
	color := h.colorFor(record)

	var b strings.Builder
	b.WriteString(record.Time.Format(time.TimeOnly))
	b.WriteByte(' ')
	if color != "" {
		b.WriteString(color)
	}
	b.WriteString(record.Level.String())
	b.WriteByte(' ')
	b.WriteString(record.Message)

	// Bound attrs are already qualified with the groups open when they
	// were added.
	for _, attr := range h.attrs {
		writeAttr(&b, "", attr)
	}
	prefix := strings.Join(h.groups, ".")
	record.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, prefix, attr)
		return true
	})

	if color != "" {
		b.WriteString(colorReset)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs returns a handler with the given attributes added.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	prefix := strings.Join(h.groups, ".")
	qualified := append([]slog.Attr{}, h.attrs...)
	for _, attr := range attrs {
		if prefix != "" {
			attr.Key = prefix + "." + attr.Key
		}
		qualified = append(qualified, attr)
	}
	clone.attrs = qualified
	return &clone
}

// WithGroup returns a handler with the given group name appended.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *ColorHandler) colorFor(record slog.Record) string {
	switch {
	case record.Level >= slog.LevelError:
		return colorRed
	case record.Level >= slog.LevelWarn:
		return colorYellow
	case record.Level >= slog.LevelInfo && isHighlighted(record.Message):
		return colorGreen
	default:
		return ""
	}
}

func isHighlighted(message string) bool {
	lower := strings.ToLower(message)
	for _, prefix := range highlightedPrefixes {
		if strings.Contains(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func writeAttr(b *strings.Builder, prefix string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	fmt.Fprintf(b, " %s=%v", key, attr.Value.Resolve().Any())
}
