package observability

import (
	"context"
	"time"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

// RecordReduce does nothing.
func (NoopMetrics) RecordReduce(_ context.Context, _ string, _ time.Duration) {}

// RecordEvent does nothing.
func (NoopMetrics) RecordEvent(_ context.Context, _ string) {}

// RecordEffects does nothing.
func (NoopMetrics) RecordEffects(_ context.Context, _ string, _ int64) {}
