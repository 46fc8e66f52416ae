package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf, ServiceName: "docprep-test"})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	logger.WithContext(ctx).WithDocument("a/doc.pdf").Info().Int("pages", 2).Msg("converted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "docprep-test", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "a/doc.pdf", entry["document"])
	assert.Equal(t, float64(2), entry["pages"])
	assert.Equal(t, "converted", entry["message"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestLogger_WithContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})

	logger.WithOperation("batch").With().Str("component", "runner").Int("workers", 4).Logger().
		Debug().Bool("rotated", true).Int64("bytes", 1<<40).Msg("page written")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "batch", entry["operation"])
	assert.Equal(t, "runner", entry["component"])
	assert.Equal(t, float64(4), entry["workers"])
	assert.Equal(t, true, entry["rotated"])
	assert.Equal(t, float64(1<<40), entry["bytes"])
}
