// Package logging builds the zap structured logger used across the
// service, giving With()-style contextual loggers without hand-rolling
// level filtering and field formatting.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style JSON logger at the given level name
// ("debug", "info", "warn", "error"). An unrecognised level falls back to
// info rather than failing startup over a typo in configuration.
func New(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// WithRequestID returns a child logger carrying the request id field, so
// every log line emitted while handling a request can be correlated
// without threading the id through every call by hand.
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}
