// Package utils provides shared logging helpers.
package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger writing to stderr, keeping stdout free for
// command output. When debug is true, uses development config (human-readable,
// debug level); otherwise uses production config (JSON, info level). Sampling
// is off so every progress entry of a long scan is kept.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
