// Package logbuf keeps the last N log records in memory for the HTTP
// log endpoint. It plugs into slog as a tee handler: records flow to
// the process logger unchanged and a copy lands in the ring.
package logbuf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record is one captured log entry.
type Record struct {
	ID      string            `json:"id"`
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`

	level slog.Level
}

// Ring is a bounded, concurrency-safe record buffer. When full, the
// oldest record is overwritten.
type Ring struct {
	mu    sync.Mutex
	buf   []Record
	next  int
	count int
}

// NewRing creates a ring holding up to capacity records (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Record, capacity)}
}

// Append stores a record, overwriting the oldest when full.
func (r *Ring) Append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// List returns up to limit records at or above minLevel, newest first.
// A limit <= 0 returns all retained records.
func (r *Ring) List(limit int, minLevel slog.Level) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > r.count {
		limit = r.count
	}

	out := make([]Record, 0, limit)
	for i := 1; i <= r.count && len(out) < limit; i++ {
		rec := r.buf[(r.next-i+len(r.buf))%len(r.buf)]
		if rec.level >= minLevel {
			out = append(out, rec)
		}
	}

	return out
}

// ─── slog Tee Handler ───

// Handler forwards records to the wrapped handler and mirrors them into
// the ring.
type Handler struct {
	next  slog.Handler
	ring  *Ring
	attrs []slog.Attr
}

// NewHandler wraps next so every record also lands in ring.
func NewHandler(next slog.Handler, ring *Ring) *Handler {
	return &Handler{next: next, ring: ring}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := make(map[string]string, rec.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})

	h.ring.Append(Record{
		ID:      ulid.Make().String(),
		Time:    rec.Time,
		Level:   rec.Level.String(),
		Message: rec.Message,
		Attrs:   attrs,
		level:   rec.Level,
	})

	return h.next.Handle(ctx, rec)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &Handler{next: h.next.WithAttrs(attrs), ring: h.ring, attrs: merged}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), ring: h.ring, attrs: h.attrs}
}

// ParseLevel maps the level query parameter to a slog level. Unknown
// strings select everything.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
