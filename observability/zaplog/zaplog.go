// Package zaplog adapts *zap.Logger to the core.Logger interface, the way
// an application that already standardizes on go.uber.org/zap would wire
// its own logging into the scheduler instead of the stdlib-backed
// core.DefaultLogger.
package zaplog

import (
	"github.com/corepoolsched/cosched/core"
	"go.uber.org/zap"
)

// Logger adapts a *zap.Logger to core.Logger.
type Logger struct {
	z *zap.Logger
}

var _ core.Logger = (*Logger)(nil)

// New wraps an existing *zap.Logger. A nil logger falls back to zap.NewNop().
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

func (l *Logger) Debug(msg string, fields ...core.Field) {
	l.z.Debug(msg, toZapFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...core.Field) {
	l.z.Info(msg, toZapFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...core.Field) {
	l.z.Warn(msg, toZapFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...core.Field) {
	l.z.Error(msg, toZapFields(fields)...)
}

func toZapFields(fields []core.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
