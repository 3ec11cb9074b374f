// Package harness runs YAML scenarios against the counter store.
//
// A scenario drives a fresh store on virtual time, checks the state and the
// events after every step, and finally evaluates assertions over the full
// trace of reduced mutations and emitted events.
//
// # Scenario Format
//
//	name: reset_after_delay
//	description: "Values above five fall back to zero after ten seconds"
//	initial: 0
//	env:
//	  reset_delay: 10s
//	flow:
//	  - send: { kind: set, value: 20 }
//	    expect: { value: 20 }
//	    events:
//	      - { kind: over10, value: 20 }
//	  - advance: 10s
//	    expect: { value: 0 }
//	  - drain: true
//	assertions:
//	  - type: trace_contains
//	    name: reset0
//	  - type: trace_order
//	    names: [over10, reset0]
//	  - type: trace_count
//	    name: set
//	    count: 2
//	  - type: final_state
//	    expect: { value: 0 }
//
// Every step does exactly one of send, advance or drain. A drain gives up
// after DrainLimit advances, so draining a running ticker fails the step.
// expect checks the state after the step; events, when present, must equal
// the events the step emitted (an empty list asserts that none were).
//
// Files are checked against an embedded CUE schema before they are decoded,
// then decoded strictly: unknown fields are errors.
//
// # Assertion Types
//
//   - trace_contains: a mutation or event named name (and with value, if
//     given) appears in the trace
//   - trace_order: the first occurrences of names appear in that order
//   - trace_count: name appears exactly count times
//   - final_state: the state after the last step equals expect
//
// # Deterministic Testing
//
// The store and its environment share one testutil.TestScheduler, so
// nothing happens between steps and every timestamp in the trace is virtual.
// Each run also journals into its own in-memory SQLite database and checks
// the journal against the trace.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/reset.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
