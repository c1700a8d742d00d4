package log

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	previous, previousLevel := Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		Logger = previous
		zerolog.SetGlobalLevel(previousLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: level, JSONOutput: true, Output: &buf})
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line, err := buf.ReadBytes('\n')
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(line, &entry))
	return entry
}

func TestWithComponent(t *testing.T) {
	buf := captureJSON(t, InfoLevel)

	logger := WithComponent("inventory")
	logger.Info().Msg("Order created")

	entry := decodeLine(t, buf)
	assert.Equal(t, "inventory", entry["component"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Order created", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestWithOrderIDKeepsParentFields(t *testing.T) {
	buf := captureJSON(t, InfoLevel)

	orderLog := WithOrderID(WithComponent("inventory"), "order-1")
	orderLog.Info().Msg("Order cancelled")

	entry := decodeLine(t, buf)
	assert.Equal(t, "inventory", entry["component"])
	assert.Equal(t, "order-1", entry["order_id"])
}

func TestWithUserIDKeepsParentFields(t *testing.T) {
	buf := captureJSON(t, InfoLevel)

	userLog := WithUserID(WithComponent("manager"), "user-1")
	userLog.Info().Msg("User logged in")

	entry := decodeLine(t, buf)
	assert.Equal(t, "manager", entry["component"])
	assert.Equal(t, "user-1", entry["user_id"])
}

func TestWarn(t *testing.T) {
	buf := captureJSON(t, WarnLevel)

	Warn("default secret in use")

	entry := decodeLine(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "default secret in use", entry["message"])
}

func TestLevelFiltering(t *testing.T) {
	buf := captureJSON(t, ErrorLevel)

	logger := WithComponent("jobs")
	logger.Info().Msg("hidden")
	logger.Warn().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Error().Msg("shown")
	assert.Equal(t, "error", decodeLine(t, buf)["level"])
}

func TestLevelValid(t *testing.T) {
	for _, l := range []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel} {
		assert.True(t, l.Valid(), string(l))
	}
	assert.False(t, Level("trace").Valid())
	assert.False(t, Level("").Valid())
}
