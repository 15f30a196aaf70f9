package collide

import (
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger is a Logger on top of a zap sugared logger. SetDebug flips
// the shared atomic level, so every logger derived from it follows.
type DefaultLogger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

// NewLoggerConfig returns the console configuration used by NewDefaultLogger.
func NewLoggerConfig() zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	cfg := NewLoggerConfig()
	if debug {
		cfg.Level.SetLevel(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		// Only reachable with broken output paths; fall back to stderr.
		logger = zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg.EncoderConfig),
			zapcore.Lock(os.Stderr),
			cfg.Level,
		))
	}
	return newZapLogger(logger, cfg.Level, prefix)
}

func newZapLogger(logger *zap.Logger, level zap.AtomicLevel, prefix string) *DefaultLogger {
	if prefix != "" {
		logger = logger.Named(prefix)
	}
	return &DefaultLogger{level: level, sugar: logger.Sugar()}
}

func (l *DefaultLogger) DebugEnabled() bool {
	return l.level.Enabled(zap.DebugLevel)
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.SetLevel(zap.DebugLevel)
		return
	}
	l.level.SetLevel(zap.InfoLevel)
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered entries.
func (l *DefaultLogger) Sync() error {
	return l.sugar.Sync()
}

// NewTestLogger returns a debug-level logger that writes through tb.
func NewTestLogger(tb testing.TB) *DefaultLogger {
	level := zap.NewAtomicLevelAt(zap.DebugLevel)
	return newZapLogger(zaptest.NewLogger(tb, zaptest.Level(level)), level, "")
}

// NewObservedTestLogger returns a debug-level logger whose entries can be
// inspected through the returned ObservedLogs.
func NewObservedTestLogger(tb testing.TB) (*DefaultLogger, *observer.ObservedLogs) {
	tb.Helper()
	level := zap.NewAtomicLevelAt(zap.DebugLevel)
	core, logs := observer.New(level)
	return newZapLogger(zap.New(core), level, ""), logs
}

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// loggerOrNop never returns nil.
func loggerOrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
