package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return New(Options{Debug: true, Output: &buf}), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		attr  string
	}{
		{"DEBUG", "dbg", "a=1"},
		{"INFO", "inf", "b=2"},
		{"WARN", "wrn", "c=3"},
		{"ERROR", "err", "d=4"},
	}

	for _, tc := range tests {
		assert.Contains(t, out, "level="+tc.level)
		assert.Contains(t, out, "msg="+tc.msg)
		assert.Contains(t, out, tc.attr)
	}
}

func TestSlogLogger_DebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("module", "relay", "user", "alice").Info(context.Background(), "hello", "k", "v")

	for _, s := range []string{"level=INFO", "msg=hello", "module=relay", "user=alice", "k=v"} {
		assert.Contains(t, buf.String(), s)
	}
}

func TestSlogLogger_RequestIDFromContext(t *testing.T) {
	log, buf := newTestLogger(t)

	ctx := WithRequestID(context.Background(), "req-42")
	log.With("module", "gate").Warn(ctx, "rejected")

	assert.Contains(t, buf.String(), "request_id=req-42")
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
}

func TestNew_JSONWithServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{JSON: true, Service: "authgate", Version: "dev", Output: &buf})

	log.Info(context.Background(), "started", "addr", ":8080")

	line := strings.TrimSpace(buf.String())
	rec := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(line), &rec))

	assert.Equal(t, "started", rec["msg"])
	assert.Equal(t, "authgate", rec["service"])
	assert.Equal(t, "dev", rec["version"])
	assert.Equal(t, ":8080", rec["addr"])
}

func TestDiscard_DoesNotPanic(t *testing.T) {
	log := Discard()
	ctx := context.TODO()

	assert.NotPanics(t, func() {
		log.Info(ctx, "ctx-ok")
		log.Debug(ctx, "ctx-ok")
		log.Warn(ctx, "ctx-ok")
		log.Error(ctx, "ctx-ok")
	})
	assert.NotNil(t, log.Slog())
}
