package core

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestZapLoggerLevels(t *testing.T) {
	logger, logs := observedLogger()
	logger.Debug("d", "k", 1)
	logger.Info("i")
	logger.Warn("w", "phase", "graph")
	logger.Error("e", "operation", "create_move")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, entry := range entries {
		if entry.Level != want[i] {
			t.Fatalf("entry %d level = %s, want %s", i, entry.Level, want[i])
		}
	}
	if entries[2].ContextMap()["phase"] != "graph" {
		t.Fatalf("fields not forwarded: %+v", entries[2].ContextMap())
	}
}

func TestNilLoggersAreSafe(t *testing.T) {
	NewZapLogger(nil).Error("dropped", "k", "v")
	var l Logger = noopLogger{}
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	if c := NewCoordinator(nil, nil, nil); c.logger == nil {
		t.Fatalf("coordinator must default to a no-op logger")
	}
}
