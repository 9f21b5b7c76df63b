package utils

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled, printf-style logging throughout the application.
type Logger struct {
	s *zap.SugaredLogger
}

// NewLoggerWithLevel creates a Logger for the given level name
// (debug, info, warn, error). Unknown names fall back to info.
func NewLoggerWithLevel(level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewExample()
	}
	return &Logger{s: z.Sugar()}
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Info(format string, args ...any) {
	l.s.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.s.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.s.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.s.Debugf(format, args...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.s.Sync()
}
