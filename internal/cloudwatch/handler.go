package cloudwatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Extra slog levels used across the platform. IMPORTANT sits between
// info and warn; MONITOR sits between warn and error; CRITICAL above
// error.
const (
	LevelImportant = slog.Level(2)
	LevelMonitor   = slog.Level(6)
	LevelCritical  = slog.Level(12)
)

// LevelName renders a level the way log events and the monitor's search
// map spell them.
func LevelName(l slog.Level) string {
	switch {
	case l >= LevelCritical:
		return "CRITICAL"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= LevelMonitor:
		return "MONITOR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= LevelImportant:
		return "IMPORTANT"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Handler is a slog.Handler that tees records into a log stream while
// forwarding them to a wrapped handler. Writes to the store are
// serialized; a store failure is dropped rather than failing the log
// call site.
type Handler struct {
	next   slog.Handler
	store  *Store
	group  string
	stream string
	attrs  []slog.Attr

	mu *sync.Mutex
}

// NewHandler wraps next so every record at or above slog's configured
// level also lands in the given group/stream.
func NewHandler(next slog.Handler, store *Store, group, stream string) *Handler {
	return &Handler{next: next, store: store, group: group, stream: stream, mu: &sync.Mutex{}}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Message)
	for _, attr := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
	}
	rec.Attrs(func(attr slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
		return true
	})

	event := Event{
		Timestamp: rec.Time.UTC(),
		Level:     LevelName(rec.Level),
		Message:   b.String(),
	}
	h.mu.Lock()
	_ = h.store.Append(ctx, h.group, h.stream, event)
	h.mu.Unlock()

	return h.next.Handle(ctx, rec)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}
