package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/lumen-edu/progress-engine/internal/platform/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug}, // unknown falls back to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(config.LogConfig{Level: tt.level, Format: "json"})
			ctx := context.Background()
			if !logger.Enabled(ctx, tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if logger.Enabled(ctx, tt.muted) {
				t.Errorf("level %s should be muted", tt.muted)
			}
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		if logger := newLogger(config.LogConfig{Level: "info", Format: format}); logger == nil {
			t.Errorf("newLogger(%s) returned nil", format)
		}
	}
}
