package testutils

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ExpectedRecord is a log record a test expects, matched on its level and a part of its message.
type ExpectedRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Compare asserts that have matches want.
func (want ExpectedRecord) Compare(t *testing.T, have slog.Record) {
	t.Helper()

	assert.Equal(t, want.Level, have.Level, "Expected Level did not match real Level")
	if want.Message != "" {
		assert.Contains(t, have.Message, want.Message, "Real Message does not contain Expected")
	}

	got := make(map[string]any, have.NumAttrs())
	have.Attrs(func(a slog.Attr) bool {
		got[a.Key] = a.Value.Any()
		return true
	})
	for k, v := range want.Attrs {
		assert.Equal(t, v, got[k], "Attribute %q did not match", k)
	}
}

// RecordingHandler is a slog handler keeping every record it handles.
type RecordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

// Enabled implements slog.Handler.
func (h *RecordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
func (h *RecordingHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record.Clone())
	return nil
}

// WithAttrs implements slog.Handler. Attributes are not recorded.
func (h *RecordingHandler) WithAttrs([]slog.Attr) slog.Handler {
	return h
}

// WithGroup implements slog.Handler. Groups are not recorded.
func (h *RecordingHandler) WithGroup(string) slog.Handler {
	return h
}

// Records returns the handled records at level or above.
func (h *RecordingHandler) Records(level slog.Level) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.DeleteFunc(slices.Clone(h.records), func(r slog.Record) bool {
		return r.Level < level
	})
}
