package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New creates a colored console logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.Kitchen,
	}))
}

// NewSessionFile opens leadtap_<timestamp>.log in dir and returns a plain
// logger writing to it. The caller closes the file.
func NewSessionFile(dir, level string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("leadtap_%s.log", time.Now().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log: %w", err)
	}
	logger := slog.New(tint.NewHandler(f, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.DateTime,
		NoColor:    true,
	}))
	return logger, f, nil
}

func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
