package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Info("connection opened", "conn_id", "abc", "live", 3)

	entry := logLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "connection opened", entry["message"])
	assert.Equal(t, "abc", entry["conn_id"])
	assert.Equal(t, float64(3), entry["live"])
	assert.Contains(t, entry, "time")
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	tests := []struct {
		level string
		fn    func(msg string, args ...any)
	}{
		{"error", log.Error},
		{"warn", log.Warn},
		{"info", log.Info},
		{"debug", log.Debug},
	}
	for _, tt := range tests {
		buf.Reset()
		tt.fn("hello")
		entry := logLine(t, &buf)
		assert.Equal(t, tt.level, entry["level"])
	}
}

func TestLoggerOddArgs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Warn("dangling", "key")

	entry := logLine(t, &buf)
	assert.Equal(t, "key", entry["arg"])
}
