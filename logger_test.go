package auth

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger := NewSlogLogger(base, "auth")
	logger.Debug("hidden %d", 1)
	logger.Warn("login tracking failed for %s", "user-1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	require.Equal(t, "WARN", entry["level"])
	require.Equal(t, "login tracking failed for user-1", entry["msg"])
	require.Equal(t, "auth", entry["component"])
}

func TestNormalizeLogger(t *testing.T) {
	require.IsType(t, defLogger{}, normalizeLogger(nil))

	custom := NewSlogLogger(nil, "")
	require.Equal(t, custom, normalizeLogger(custom))
}
