package logging

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")
	logger.Info("PAGE", "n", 1)
	logger.Warn("RATE_LIMIT", "cooldown", "30s")

	out := buf.String()
	assert.NotContains(t, out, "PAGE")
	assert.Contains(t, out, "RATE_LIMIT")
}

func TestSessionFile(t *testing.T) {
	dir := t.TempDir()
	logger, f, err := NewSessionFile(dir, "info")
	require.NoError(t, err)
	logger.Info("SESSION_START", "niche", "padaria")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.Name(), dir))
	assert.Contains(t, string(data), "SESSION_START")
	assert.Contains(t, string(data), "niche=padaria")
}
