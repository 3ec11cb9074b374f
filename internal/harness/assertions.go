package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/flux/internal/counter"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] @%s step %d %s %s(%d)\n", i+1, event.At, event.Step, event.Type, event.Name, event.Value)
		}
	}

	return buf.String()
}

// assertTraceContains checks that an entry named assertion.Name, with
// assertion.Value if given, appears in the trace.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Name != assertion.Name {
			continue
		}
		if assertion.Value == nil || *assertion.Value == event.Value {
			return nil
		}
	}

	expected := assertion.Name
	if assertion.Value != nil {
		expected = fmt.Sprintf("%s(%d)", assertion.Name, *assertion.Value)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of names appear in the
// given order. Entries in between are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	for i, event := range trace {
		if _, seen := positions[event.Name]; !seen {
			positions[event.Name] = i + 1 // 1-indexed for readability
		}
	}

	for _, name := range assertion.Names {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all entries present: %v", assertion.Names),
				Actual:   fmt.Sprintf("missing entry: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Names); i++ {
		prev := assertion.Names[i-1]
		curr := assertion.Names[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("entries in order: %v", assertion.Names),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that name appears exactly assertion.Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Name == assertion.Name {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Name),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState compares the state after the last step.
func assertFinalState(final counter.State, assertion Assertion) error {
	if *assertion.Expect != final {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%+v", *assertion.Expect),
			Actual:   fmt.Sprintf("%+v", final),
		}
	}
	return nil
}

// AssertionContext carries what assertions need beyond the trace.
type AssertionContext struct {
	Final counter.State
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			switch {
			case actx == nil:
				err = fmt.Errorf("assertion[%d]: final_state requires a final state", i)
			case assertion.Expect == nil:
				err = fmt.Errorf("assertion[%d]: final_state requires expect", i)
			default:
				err = assertFinalState(actx.Final, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
