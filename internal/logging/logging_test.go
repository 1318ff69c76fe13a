package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_DebugFlagControlsLevel(t *testing.T) {
	l, err := New(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug level should be disabled without the debug flag")
	}

	l, err = New(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug level should be enabled with the debug flag")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected a logger")
	}
}
