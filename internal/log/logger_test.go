package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}

	for raw, want := range cases {
		assert.Equal(t, want, ParseLevel(raw), raw)
	}
}

func TestWithCorrelationID_UsesContextValue(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	ctx := context.WithValue(context.Background(), CorrelatedIDKey, "req-42")
	logger.WithCorrelationID(ctx).Info("Pre-registration accepted")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-42", record["correlation_id"])
	assert.Equal(t, "Pre-registration accepted", record["msg"])
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestGetLoggerInstanceFromContext(t *testing.T) {
	injected := NewDiscardLogger()
	ctx := context.WithValue(context.Background(), LoggerKeyForContext, injected)
	assert.Same(t, injected, GetLoggerInstanceFromContext(ctx, nil))

	fallback := NewDiscardLogger()
	assert.NotNil(t, GetLoggerInstanceFromContext(context.Background(), fallback))
}

func TestGetOrGenerateCorrelationID(t *testing.T) {
	assert.NotEmpty(t, GetOrGenerateCorrelationID(context.Background()))

	ctx := context.WithValue(context.Background(), CorrelatedIDKey, "abc")
	assert.Equal(t, "abc", GetOrGenerateCorrelationID(ctx))
}
