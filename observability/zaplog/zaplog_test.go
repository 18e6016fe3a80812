package zaplog

import (
	"testing"

	"github.com/corepoolsched/cosched/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_ForwardsFieldsAndLevel(t *testing.T) {
	zc, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(zc))

	l.Info("worker started", core.F("index", 3))
	l.Error("task panicked", core.F("worker", 1), core.F("reason", "boom"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}

	if entries[0].Level != zapcore.InfoLevel || entries[0].Message != "worker started" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if got := entries[0].ContextMap()["index"]; got != int64(3) {
		t.Fatalf("index field = %v, want 3", got)
	}

	if entries[1].Level != zapcore.ErrorLevel || entries[1].Message != "task panicked" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestNew_NilLoggerIsNoOp(t *testing.T) {
	l := New(nil)
	l.Debug("should not panic")
}
