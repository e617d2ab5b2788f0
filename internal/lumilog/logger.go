// Package lumilog constructs the shared zap logger. There is no global
// logger singleton: callers build one logger at the process entry point and
// pass it explicitly into the scheduler and from there into every component.
package lumilog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production logger, or a development logger (human-readable,
// debug level) when dev is true.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Component returns a logger scoped to a named component, matching the
// `zap.String("component", ...)` field convention used throughout the
// derivation pipeline's logging call sites.
func Component(base *zap.Logger, name string) *zap.Logger {
	return base.With(zap.String("component", name))
}
