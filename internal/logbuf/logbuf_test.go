package logbuf

import (
	"io"
	"log/slog"
	"testing"
)

func newTestLogger(ring *Ring) *slog.Logger {
	next := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewHandler(next, ring))
}

func TestRing_WrapAround(t *testing.T) {
	r := NewRing(3)
	logger := newTestLogger(r)

	for i := 0; i < 5; i++ {
		logger.Info("msg", "i", i)
	}

	got := r.List(0, slog.LevelDebug)
	if len(got) != 3 {
		t.Fatalf("retained: %d", len(got))
	}
	// Newest first.
	if got[0].Attrs["i"] != "4" || got[2].Attrs["i"] != "2" {
		t.Errorf("order: %v, %v", got[0].Attrs, got[2].Attrs)
	}
}

func TestRing_LevelFilter(t *testing.T) {
	r := NewRing(16)
	logger := newTestLogger(r)

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	if got := r.List(0, slog.LevelWarn); len(got) != 2 {
		t.Errorf("warn+ records: %d", len(got))
	}
	if got := r.List(0, slog.LevelDebug); len(got) != 4 {
		t.Errorf("all records: %d", len(got))
	}
}

func TestRing_Limit(t *testing.T) {
	r := NewRing(16)
	logger := newTestLogger(r)

	for i := 0; i < 10; i++ {
		logger.Info("msg")
	}

	if got := r.List(4, slog.LevelDebug); len(got) != 4 {
		t.Errorf("limited records: %d", len(got))
	}
}

func TestHandler_RecordFields(t *testing.T) {
	r := NewRing(4)
	logger := newTestLogger(r).With("component", "scheduler")

	logger.Warn("tick lag", "lags", 3)

	got := r.List(1, slog.LevelDebug)
	if len(got) != 1 {
		t.Fatalf("records: %d", len(got))
	}

	rec := got[0]
	if rec.Message != "tick lag" || rec.Level != "WARN" {
		t.Errorf("record: %+v", rec)
	}
	if rec.Attrs["component"] != "scheduler" || rec.Attrs["lags"] != "3" {
		t.Errorf("attrs: %v", rec.Attrs)
	}
	if rec.ID == "" {
		t.Error("record id not set")
	}
	if rec.Time.IsZero() {
		t.Error("record time not set")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelDebug,
		"bogus":   slog.LevelDebug,
	}

	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
