package journal

import (
	"context"
	"log/slog"
)

// Observer journals the reduce steps and events of one store. It satisfies
// the store package's Observer interface.
//
// Observer callbacks cannot fail the store, so write errors are logged and
// counted instead.
type Observer struct {
	journal *Journal
	store   string
	logger  *slog.Logger
	failed  int
}

// Observer returns an observer that journals under the given store name.
func (j *Journal) Observer(store string, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{journal: j, store: store, logger: logger}
}

// Reduced journals a mutation that was applied at step.
func (o *Observer) Reduced(step int64, mutation any) {
	o.record(step, KindMutation, mutation)
}

// Emitted journals an event produced by the effect of step.
func (o *Observer) Emitted(step int64, event any) {
	o.record(step, KindEvent, event)
}

// Failed returns the number of entries that could not be written.
func (o *Observer) Failed() int {
	return o.failed
}

func (o *Observer) record(step int64, kind Kind, value any) {
	if _, err := o.journal.Record(context.Background(), o.store, step, kind, value); err != nil {
		o.failed++
		o.logger.Error("journal write failed",
			"store", o.store,
			"step", step,
			"kind", kind,
			"error", err,
		)
	}
}
