package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_toLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, toLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, toLevel("warn"))
	assert.Equal(t, slog.LevelError, toLevel("error"))
	assert.Equal(t, slog.LevelInfo, toLevel(""))
	assert.Equal(t, slog.LevelInfo, toLevel("verbose"))
}

func Test_NewLoggerTo_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "info")
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")

	log.InfoContext(ctx, "order placed", "order_id", "o-1")
	log.DebugContext(ctx, "dropped")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "order placed", record["msg"])
	assert.Equal(t, "req-42", record["request_id"])
	assert.Equal(t, "o-1", record["order_id"])
}
