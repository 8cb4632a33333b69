package logging

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

type ShutdownFunc func() error

// NewLogger creates a structured logger backed by zap and wrapped with slog's
// interface. Production settings with ISO8601 timestamps; level is one of
// debug, info, warn or error.
func NewLogger(level string) (*slog.Logger, ShutdownFunc, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logConfig.Level = zap.NewAtomicLevelAt(parseLevel(level))

	zapLog, err := logConfig.Build()
	if err != nil {
		return nil, nil, err
	}

	shutdown := func() error {
		return zapLog.Core().Sync()
	}
	return slog.New(zapslog.NewHandler(zapLog.Core(), zapslog.WithCaller(true))), shutdown, nil
}

func FallbackLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
