// Package logger holds the process-wide zap logger. Until Init runs the
// logger is a no-op, so packages can log freely during early startup and
// in tests without configuring anything.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared logger. Handlers and services use the package-level
// helpers below; code that attaches persistent fields should call
// GetLogger().With(...) instead.
var Log = zap.NewNop()

// helper reports call sites one frame up, so logger.Info lines point at
// the caller rather than this package.
var helper = Log

// Init builds the shared logger. format is "json" or "console"; outputPath
// is a file path, or "stdout" (the default when empty).
func Init(level, format, outputPath string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	sink, err := openSink(outputPath)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(encoder, sink, zapLevel)
	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	helper = Log.WithOptions(zap.AddCallerSkip(1))
	return nil
}

func openSink(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(file), nil
}

func GetLogger() *zap.Logger {
	return Log
}

func Debug(msg string, fields ...zap.Field) {
	helper.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	helper.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	helper.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	helper.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	helper.Fatal(msg, fields...)
}

func Sync() {
	Log.Sync()
}
