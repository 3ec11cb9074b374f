package store

import (
	"log/slog"

	"github.com/roach88/flux/internal/observability"
	"github.com/roach88/flux/internal/scheduler"
)

// Observer is told about every reduce step and every emitted event, in
// order. journal.Observer implements it.
type Observer interface {
	Reduced(step int64, mutation any)
	Emitted(step int64, event any)
}

// IDGenerator names outstanding effect subscriptions.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDs (tests).
type IDGenerator interface {
	Generate() string
}

type config struct {
	name      string
	scheduler scheduler.Scheduler
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	observer  Observer
	ids       IDGenerator
}

// Option configures a Store.
type Option func(*config)

// WithName sets the name used in logs, metrics and the journal.
//
// Default: "store"
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithScheduler sets the scheduler every mutation is delivered through.
//
// Default: a scheduler.Loop owned by the goroutine calling New.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(c *config) {
		c.scheduler = s
	}
}

// WithLogger sets the logger.
//
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
//
// Default: observability.NoopMetrics{}
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithObserver registers an observer of reduce steps and events.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithIDGenerator sets how outstanding effects are keyed.
//
// Default: UUIDv7Generator{}
func WithIDGenerator(g IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}
