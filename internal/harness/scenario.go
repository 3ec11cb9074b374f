package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flux/internal/counter"
)

// Scenario is one harness run: a fresh counter store driven by a flow of
// steps and checked by assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the counter's starting value.
	Initial int `yaml:"initial,omitempty"`

	// Env overrides the counter's delays. Zero fields keep the defaults.
	Env EnvOverrides `yaml:"env,omitempty"`

	// Flow is the sequence of steps. Each step does exactly one thing.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are evaluated over the whole trace after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// EnvOverrides overrides counter.Environment delays.
type EnvOverrides struct {
	ResetDelay   time.Duration `yaml:"reset_delay,omitempty"`
	ClampDelay   time.Duration `yaml:"clamp_delay,omitempty"`
	TickInterval time.Duration `yaml:"tick_interval,omitempty"`
}

// FlowStep is one step of the flow.
type FlowStep struct {
	// Send submits an action.
	Send *counter.Action `yaml:"send,omitempty"`

	// Advance moves virtual time forward.
	Advance *time.Duration `yaml:"advance,omitempty"`

	// Drain runs every pending timer, however far ahead.
	Drain bool `yaml:"drain,omitempty"`

	// Expect is the state after the step. Nil skips the check.
	Expect *counter.State `yaml:"expect,omitempty"`

	// Events are the events the step must emit, in order. Nil skips the
	// check; an empty list asserts no events.
	Events []counter.Event `yaml:"events,omitempty"`
}

// Describe renders the step for traces and error messages.
func (s FlowStep) Describe() string {
	switch {
	case s.Send != nil:
		if s.Send.Kind == counter.ActionSet {
			return fmt.Sprintf("send %s(%d)", s.Send.Kind, s.Send.Value)
		}
		return fmt.Sprintf("send %s", s.Send.Kind)
	case s.Advance != nil:
		return fmt.Sprintf("advance %s", *s.Advance)
	case s.Drain:
		return "drain"
	default:
		return "empty step"
	}
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": name (and value, if set) appears in the trace
	// - "trace_order": names appear in that order
	// - "trace_count": name appears exactly count times
	// - "final_state": the final state equals expect
	Type string `yaml:"type"`

	// Name is a mutation or event kind (trace_contains, trace_count).
	Name string `yaml:"name,omitempty"`

	// Value restricts trace_contains to entries with this value.
	Value *int `yaml:"value,omitempty"`

	// Names is the expected order (trace_order).
	Names []string `yaml:"names,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect is the expected final state (final_state).
	Expect *counter.State `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads, schema-checks and decodes a scenario file.
// Returns an error if the file doesn't exist, violates the schema,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario is LoadScenario for in-memory YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		actions := 0
		if step.Send != nil {
			actions++
		}
		if step.Advance != nil {
			actions++
			if *step.Advance < 0 {
				return fmt.Errorf("flow[%d]: advance must not be negative", i)
			}
		}
		if step.Drain {
			actions++
		}
		if actions != 1 {
			return fmt.Errorf("flow[%d]: exactly one of send, advance or drain is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
