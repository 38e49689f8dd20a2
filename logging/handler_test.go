package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authcore", "1.2.0", Options{}, &buf)

	logger.Info("login succeeded", "user_id", "u1")

	entry := decode(t, &buf)
	assert.Equal(t, "login succeeded", entry["msg"])
	assert.Equal(t, "authcore", entry["service"])
	assert.Equal(t, "1.2.0", entry["version"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authcore", "dev", Options{Format: "TEXT"}, &buf)

	logger.Warn("account locked")

	out := buf.String()
	assert.Contains(t, out, "account locked")
	assert.Contains(t, out, "service=authcore")
}

func TestTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authcore", "dev", Options{}, &buf)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "refresh")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authcore", "dev", Options{Level: "warn"}, &buf)

	logger.Debug("token rejected")
	logger.Info("login succeeded")
	assert.Zero(t, buf.Len())

	logger.Warn("publish failed")
	assert.NotZero(t, buf.Len())
}

func TestWithAttrsAndGroupKeepServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authcore", "dev", Options{}, &buf).
		With("component", "reaper").
		WithGroup("sweep")

	logger.Info("pass", "removed", 3)

	entry := decode(t, &buf)
	assert.Equal(t, "reaper", entry["component"])
	sweep, ok := entry["sweep"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, sweep["removed"])
	assert.Equal(t, "authcore", sweep["service"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" Warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}
