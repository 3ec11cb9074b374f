package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/flux/internal/counter"
	"github.com/roach88/flux/internal/journal"
	"github.com/roach88/flux/internal/store"
	"github.com/roach88/flux/internal/testutil"
)

// DrainLimit bounds a drain step. A running ticker never drains.
const DrainLimit = 100

// Harness is the state of one scenario run. It observes the store it
// drives: every reduce step and event lands in the result trace and in the
// run's journal.
type Harness struct {
	store   *counter.Store
	sched   *testutil.TestScheduler
	journal *journal.Observer
	logger  *slog.Logger
	result  *Result

	start      time.Time
	flow       int
	stepEvents []counter.Event
}

var _ store.Observer = (*Harness)(nil)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store and a fresh in-memory journal.
// The store and its environment share one virtual clock, so results are
// reproducible.
//
// Execution flow:
// 1. Open an in-memory journal and build the store
// 2. Execute flow steps, checking expect and events after each
// 3. Cross-check the journal against the trace
// 4. Evaluate assertions
//
// An error is returned only when the run itself could not be set up;
// scenario failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	sched := testutil.NewTestScheduler()
	sched.SetDrainLimit(DrainLimit)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	h := &Harness{
		sched:   sched,
		journal: j.Observer(scenario.Name, logger),
		logger:  logger,
		result:  NewResult(),
		start:   sched.Now(),
	}

	h.store = counter.New(scenario.Initial, environment(sched, scenario.Env),
		store.WithName(scenario.Name),
		store.WithScheduler(sched),
		store.WithLogger(logger),
		store.WithObserver(h),
		store.WithIDGenerator(testutil.NewSequentialIDs("effect")),
	)
	defer h.store.Close()

	for i, step := range scenario.Flow {
		h.executeStep(i, step)
	}

	result := h.result
	result.Final = h.store.State().Value

	ctx := context.Background()
	entries, err := j.Entries(ctx, scenario.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.Journaled = len(entries)
	if failed := h.journal.Failed(); failed > 0 {
		result.AddError(fmt.Sprintf("journal: %d entries could not be written", failed))
	}
	if len(entries) != len(result.Trace) {
		result.AddError(fmt.Sprintf("journal: %d entries for %d trace events", len(entries), len(result.Trace)))
	}

	actx := &AssertionContext{Final: h.store.State()}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func environment(sched *testutil.TestScheduler, o EnvOverrides) counter.Environment {
	env := counter.NewEnvironment(sched)
	if o.ResetDelay > 0 {
		env.ResetDelay = o.ResetDelay
	}
	if o.ClampDelay > 0 {
		env.ClampDelay = o.ClampDelay
	}
	if o.TickInterval > 0 {
		env.TickInterval = o.TickInterval
	}
	return env
}

// executeStep runs one flow step and checks its expectations.
func (h *Harness) executeStep(i int, step FlowStep) {
	h.flow = i
	h.stepEvents = nil

	var err error
	switch {
	case step.Send != nil:
		h.store.Send(*step.Send)
		// The store delivers through the virtual scheduler.
		err = h.sched.AdvanceBy(0)
	case step.Advance != nil:
		err = h.sched.AdvanceBy(*step.Advance)
	case step.Drain:
		err = h.sched.Drain()
	}
	if err != nil {
		h.result.AddError(fmt.Sprintf("flow[%d] (%s): %v", i, step.Describe(), err))
	}

	state := h.store.State()
	if step.Expect != nil && *step.Expect != state {
		h.result.AddError(fmt.Sprintf("flow[%d] (%s): state = %+v, want %+v", i, step.Describe(), state, *step.Expect))
	}
	if step.Events != nil && !slices.Equal(step.Events, h.stepEvents) {
		h.result.AddError(fmt.Sprintf("flow[%d] (%s): events differ (-want +got):\n%s",
			i, step.Describe(), cmp.Diff(step.Events, h.stepEvents)))
	}

	h.logger.Info("flow step completed",
		"step", i,
		"action", step.Describe(),
		"value", state.Value,
		"events", len(h.stepEvents),
	)
}

// Reduced implements store.Observer.
func (h *Harness) Reduced(step int64, mutation any) {
	h.journal.Reduced(step, mutation)

	m, ok := mutation.(counter.Mutation)
	if !ok {
		h.result.AddError(fmt.Sprintf("unexpected mutation type %T at step %d", mutation, step))
		return
	}
	h.result.AddTrace(TraceEvent{
		Type:  EntryMutation,
		Name:  string(m.Kind),
		Value: m.Value,
		Step:  step,
		At:    h.elapsed(),
		Flow:  h.flow,
	})
}

// Emitted implements store.Observer.
func (h *Harness) Emitted(step int64, event any) {
	h.journal.Emitted(step, event)

	e, ok := event.(counter.Event)
	if !ok {
		h.result.AddError(fmt.Sprintf("unexpected event type %T at step %d", event, step))
		return
	}
	h.stepEvents = append(h.stepEvents, e)
	h.result.AddTrace(TraceEvent{
		Type:  EntryEvent,
		Name:  string(e.Kind),
		Value: e.Value,
		Step:  step,
		At:    h.elapsed(),
		Flow:  h.flow,
	})
}

func (h *Harness) elapsed() string {
	return h.sched.Now().Sub(h.start).String()
}
