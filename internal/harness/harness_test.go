package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioDir holds the scenarios shared with `flux test`.
const scenarioDir = "../../testdata/scenarios"

func TestScenarios(t *testing.T) {
	for _, name := range []string{"reset_after_delay", "ticking", "clamp_high_values"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name should match file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)

			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.Equal(t, len(result.Trace), result.Journaled, "every trace entry is journaled")
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join(scenarioDir, "clamp_high_values.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRun_ReportsStepMismatches(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectations
description: "Every expectation here is wrong"
flow:
  - send: { kind: set, value: 12 }
    expect: { value: 11 }
    events: []
  - advance: 10s
    expect: { value: 12 }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "flow[0] (send set(12)): state = {Value:12}, want {Value:11}")
	assert.Contains(t, result.Errors[1], "flow[0] (send set(12)): events differ")
	assert.Contains(t, result.Errors[2], "flow[1] (advance 10s): state = {Value:0}, want {Value:12}")
	assert.Equal(t, 0, result.Final)
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failing_assertions
description: "Assertions that do not hold"
flow:
  - send: { kind: set, value: 2 }
assertions:
  - type: trace_contains
    name: over10
  - type: trace_count
    name: set
    count: 2
  - type: final_state
    expect: { value: 3 }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Assertion failed: trace_contains")
	assert.Contains(t, result.Errors[1], "Expected: 2 occurrences of set")
	assert.Contains(t, result.Errors[2], "Expected: {Value:3}")
}

func TestRun_DrainLimitWithRunningTicker(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: endless_ticker
description: "Draining never finishes while the ticker runs"
env:
  tick_interval: 1h
flow:
  - send: { kind: start_ticking }
  - drain: true
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "drain after 100 rounds: drain limit reached")
}
