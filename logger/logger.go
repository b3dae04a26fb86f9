package logger

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and encoding of the process logger.
type Config struct {
	Level  string
	Format string
}

var std atomic.Pointer[zap.Logger]

func init() {
	l, err := New(Config{Level: "info", Format: "console"})
	if err != nil {
		l = zap.NewNop()
	}
	std.Store(l)
}

// New builds a zap logger. Format is either "json" or "console".
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var (
		encoding      string
		encoderConfig zapcore.EncoderConfig
	)
	switch cfg.Format {
	case "json":
		encoding = "json"
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console", "":
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encoderConfig,
	}

	l, err := zapCfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Set replaces the process logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	std.Store(l)
}

// L returns the process logger for structured logging.
func L() *zap.Logger {
	return std.Load()
}

// skipped reports the caller of the public helper rather than the helper itself.
func skipped() *zap.Logger {
	return std.Load().WithOptions(zap.AddCallerSkip(1))
}

// LogErr logs the provided error (if non-nil) and returns it unchanged.
// It is meant to be used inline when propagating errors up the call stack.
func LogErr(err error) error {
	if err == nil {
		return nil
	}
	skipped().Error(err.Error())
	return err
}

// LogError logs a formatted error message and returns it as an error.
func LogError(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	skipped().Error(err.Error())
	return err
}

// LogErrorf logs a formatted error message.
func LogErrorf(format string, args ...interface{}) {
	skipped().Error(fmt.Sprintf(format, args...))
}

// Fatal logs the provided error (if non-nil) and terminates the process.
func Fatal(err error) {
	if err == nil {
		return
	}
	skipped().Error(err.Error())
	_ = std.Load().Sync()
	os.Exit(1)
}

// Error logs the provided error (if non-nil).
func Error(err error) {
	if err == nil {
		return
	}
	skipped().Error(err.Error())
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	skipped().Warn(fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	skipped().Info(fmt.Sprintf(format, args...))
}

// Sync flushes buffered entries.
func Sync() error {
	return std.Load().Sync()
}
