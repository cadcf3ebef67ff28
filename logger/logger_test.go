package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		enabled zapcore.Level
		skipped zapcore.Level
	}{
		{"debug", "debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"warn", "warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"unknown falls back to info", "loud", zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.level, false)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !log.Core().Enabled(tt.enabled) {
				t.Errorf("expected level %v to be enabled", tt.enabled)
			}
			if log.Core().Enabled(tt.skipped) {
				t.Errorf("expected level %v to be disabled", tt.skipped)
			}
		})
	}
}

func TestNewDevelopment(t *testing.T) {
	log, err := New("info", true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be enabled in development mode")
	}
}
