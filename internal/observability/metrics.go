// Package observability records store metrics through OpenTelemetry.
package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every flux instrument.
const MeterName = "flux"

// MetricsRecorder records store metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordReduce records one reduce step and how long it took.
	RecordReduce(ctx context.Context, store string, duration time.Duration)

	// RecordEvent records one event emitted by a reduce effect.
	RecordEvent(ctx context.Context, store string)

	// RecordEffects moves the in-flight effect gauge by delta.
	RecordEffects(ctx context.Context, store string, delta int64)
}

type otelMetrics struct {
	reductions    metric.Int64Counter
	reduceLatency metric.Float64Histogram
	events        metric.Int64Counter
	effects       metric.Int64UpDownCounter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter(MeterName))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	reductions, err := meter.Int64Counter("flux.store.reductions",
		metric.WithDescription("Number of reduce steps"),
	)
	if err != nil {
		return nil, err
	}

	reduceLatency, err := meter.Float64Histogram("flux.store.reduce_latency_ms",
		metric.WithDescription("Reduce step latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	events, err := meter.Int64Counter("flux.store.events",
		metric.WithDescription("Number of events emitted by reduce effects"),
	)
	if err != nil {
		return nil, err
	}

	effects, err := meter.Int64UpDownCounter("flux.store.effects_in_flight",
		metric.WithDescription("Reduce effects still running after their step"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		reductions:    reductions,
		reduceLatency: reduceLatency,
		events:        events,
		effects:       effects,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If initialization fails it logs and returns NoopMetrics.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderFrom returns a MetricsRecorder using provider instead of
// the global one.
func NewMetricsRecorderFrom(provider metric.MeterProvider) (MetricsRecorder, error) {
	m, err := newOtelMetrics(provider.Meter(MeterName))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func storeAttr(store string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("store", store))
}

func (m *otelMetrics) RecordReduce(ctx context.Context, store string, duration time.Duration) {
	m.reductions.Add(ctx, 1, storeAttr(store))
	m.reduceLatency.Record(ctx, float64(duration)/float64(time.Millisecond), storeAttr(store))
}

func (m *otelMetrics) RecordEvent(ctx context.Context, store string) {
	m.events.Add(ctx, 1, storeAttr(store))
}

func (m *otelMetrics) RecordEffects(ctx context.Context, store string, delta int64) {
	m.effects.Add(ctx, delta, storeAttr(store))
}
