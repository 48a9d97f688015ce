// Package logging wraps a single zap.Logger with component-scoped child
// loggers, so every stage and the driver log through a consistent field
// set without each owning its own zap bootstrap.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the root logger. verbose lowers the level to debug; otherwise
// the logger runs at info and above.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// Component returns a child logger tagged with the owning package or
// stage name, so log lines can be filtered by component downstream.
func Component(base *zap.Logger, name string) *zap.Logger {
	return base.With(zap.String("component", name))
}

// ForStep returns a child logger scoped to one pipeline step.
func ForStep(base *zap.Logger, step string) *zap.Logger {
	return base.With(zap.String("step", step))
}
