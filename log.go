package zenstore

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger carried by repositories and the framework.
// Debug output stays off unless the repository, the per-call option, or the
// logger itself enables it.
type Logger struct {
	sugar *zap.SugaredLogger
	debug bool
}

func NewLogger(debug bool) *Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		zl = zap.NewNop()
	}

	return &Logger{sugar: zl.Sugar(), debug: debug}
}

// NewNopLogger discards everything. Used as the default until a caller wires
// a real logger.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *Logger) With(args ...any) *Logger {
	return &Logger{sugar: l.sugar.With(args...), debug: l.debug}
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
