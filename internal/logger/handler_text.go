package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// tagKey is the reserved attribute key carrying the operator tag of a
// record. The handler lifts it out of the attribute list and prints it in
// the level slot.
const tagKey = "!tag"

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// TagTextHandler implements slog.Handler with the server.log record format:
// [YYYY-MM-DD HH:MM:SS] [TAG] message key=value
type TagTextHandler struct {
	w        io.Writer
	mu       *sync.Mutex
	attrs    []slog.Attr
	useColor bool
}

// NewTagTextHandler creates a new TagTextHandler.
func NewTagTextHandler(w io.Writer, useColor bool) *TagTextHandler {
	return &TagTextHandler{
		w:        w,
		mu:       &sync.Mutex{},
		useColor: useColor,
	}
}

// Enabled reports whether the handler handles records at the given level.
// Severity filtering happens before records reach the handler, so every
// record that arrives is written.
func (h *TagTextHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// Handle formats and writes a log record.
func (h *TagTextHandler) Handle(_ context.Context, r slog.Record) error {
	timestamp := r.Time.Format("2006-01-02 15:04:05")

	tag := string(TagInfo)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == tagKey {
			tag = a.Value.String()
			return false
		}
		return true
	})

	// Build output outside the lock; one Write call keeps records whole.
	var buf []byte
	buf = fmt.Appendf(buf, "[%s] [%s] %s", timestamp, h.formatTag(tag), r.Message)

	for _, attr := range h.attrs {
		buf = h.appendAttr(buf, attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != tagKey {
			buf = h.appendAttr(buf, a)
		}
		return true
	})

	buf = append(buf, '\n')

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()
	return err
}

func (h *TagTextHandler) formatTag(tag string) string {
	if !h.useColor {
		return tag
	}
	var color string
	switch Tag(tag) {
	case TagDebug:
		color = colorGray
	case TagWarning:
		color = colorYellow
	case TagError:
		color = colorRed
	default:
		color = colorGreen
	}
	return color + tag + colorReset
}

func (h *TagTextHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	a.Value = a.Value.Resolve()
	if h.useColor {
		return fmt.Appendf(buf, " %s%s%s=%v", colorCyan, a.Key, colorReset, a.Value.Any())
	}
	return fmt.Appendf(buf, " %s=%v", a.Key, a.Value.Any())
}

// WithAttrs returns a new handler with the given attributes added.
func (h *TagTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &h2
}

// WithGroup returns the handler unchanged; grouped attributes are not used
// by the server.log format.
func (h *TagTextHandler) WithGroup(_ string) slog.Handler {
	return h
}
