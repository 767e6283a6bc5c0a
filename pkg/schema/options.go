package schema

import (
	"log/slog"
	"time"
)

const (
	// DefaultBindTimeout bounds the namespace selection round-trip.
	DefaultBindTimeout = 5 * time.Second
	// DefaultNamespace is the shared namespace used by work without a tenant.
	DefaultNamespace = "public"
)

type options struct {
	bindTimeout      time.Duration
	defaultNamespace string
	logger           *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithBindTimeout sets how long binding may take before it counts as failed.
func WithBindTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.bindTimeout = d
		}
	}
}

// WithDefaultNamespace sets the namespace used by WithDefault.
func WithDefaultNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.defaultNamespace = ns
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
