package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Modes(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{"development", "production", ""} {
		l, err := New(mode, "warn")
		if err != nil {
			t.Fatalf("New(%q) returned error: %v", mode, err)
		}
		if l.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("mode %q: expected info to be disabled at warn level", mode)
		}
		if !l.Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("mode %q: expected error to be enabled", mode)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("development", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
