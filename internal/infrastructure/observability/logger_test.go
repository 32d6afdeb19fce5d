package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func restoreGlobalLogger(t *testing.T) {
	t.Helper()
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })
}

func TestInitLogger_FiltersBelowLevel(t *testing.T) {
	restoreGlobalLogger(t)
	var buf bytes.Buffer
	InitLogger(LoggerOptions{Service: "bill-enrich", Environment: "production", Level: "warn", Out: &buf})

	log.Info().Msg("batch started")
	log.Warn().Str("href", "https://example.org/bill/c-1").Msg("bill degraded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "bill degraded", entry["message"])
	assert.Equal(t, "bill-enrich", entry["service"])
	assert.Equal(t, "warn", entry["level"])
}

func TestInitLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	restoreGlobalLogger(t)
	var buf bytes.Buffer
	InitLogger(LoggerOptions{Service: "bill-api", Environment: "production", Level: "chatty", Out: &buf})

	log.Debug().Msg("hidden")
	log.Info().Msg("visible")

	out := buf.String()
	assert.Contains(t, out, "unknown log level")
	assert.Contains(t, out, "visible")
	assert.NotContains(t, out, "hidden")
}

func TestLoggerFromContext_AddsTraceIDs(t *testing.T) {
	restoreGlobalLogger(t)
	var buf bytes.Buffer
	InitLogger(LoggerOptions{Service: "bill-api", Environment: "production", Out: &buf})

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	LoggerFromContext(ctx).Info().Msg("with trace")
	LoggerFromContext(context.Background()).Info().Msg("without trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], traceID.String())
	assert.Contains(t, lines[0], spanID.String())
	assert.NotContains(t, lines[1], "trace_id")
}
