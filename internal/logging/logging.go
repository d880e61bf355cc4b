// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"eventbot/internal/config"
)

var secretKeys = []string{"key", "token", "secret", "password", "authorization", "bearer"}

// New returns a slog.Logger writing to w with the configured level and format.
// String attributes that look like credentials are redacted.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		ReplaceAttr: maskSecrets,
	}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Open creates the logger for cfg, writing to cfg.File when set and to
// fallback otherwise. The returned close func is never nil.
func Open(cfg config.LogConfig, fallback io.Writer) (*slog.Logger, func() error, error) {
	if cfg.File == "" {
		return New(cfg, fallback), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return New(cfg, f), f.Close, nil
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func maskSecrets(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	lowerK := strings.ToLower(a.Key)
	for _, p := range secretKeys {
		if strings.Contains(lowerK, p) {
			return slog.String(a.Key, redact(s))
		}
	}
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return slog.String(a.Key, "Bearer "+redact(s[len("bearer "):]))
	}
	// common provider key prefixes
	if strings.HasPrefix(s, "sk-") || strings.HasPrefix(s, "AIza") {
		return slog.String(a.Key, redact(s))
	}
	return a
}

func redact(s string) string {
	n := len(s)
	if n <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[n-4:]
}
