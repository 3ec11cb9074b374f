package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flux/internal/config"
	"github.com/roach88/flux/internal/counter"
	"github.com/roach88/flux/internal/journal"
)

func newTestRunCommand(format, input string, args ...string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	return cmd, buf, errBuf
}

func TestRunCommandSession(t *testing.T) {
	cmd, buf, _ := newTestRunCommand("text", "set 20\nstate\n\ninc\nbogus\nquit\nset 1\n")

	require.NoError(t, cmd.Execute())

	assert.Equal(t, strings.Join([]string{
		"state: 0",
		"state: 20",
		"event: over10(20)",
		"value: 20",
		"state: 21",
		"event: over10(21)",
		`error: unknown command "bogus"`,
	}, "\n")+"\n", buf.String())
}

func TestRunCommandEndOfInputCancelsPendingReset(t *testing.T) {
	cmd, buf, _ := newTestRunCommand("text", "set 20\n", "--reset-delay", "1h")

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run kept waiting for the reset after its input ended")
	}
	assert.Equal(t, "state: 0\nstate: 20\nevent: over10(20)\n", buf.String())
}

func TestRunCommandSessionJSON(t *testing.T) {
	cmd, buf, _ := newTestRunCommand("json", "dec\ninc\nstate\n", "--initial", "1")

	require.NoError(t, cmd.Execute())

	var lines []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), scanner.Text())
		lines = append(lines, line)
	}

	assert.Equal(t, []map[string]any{
		{"state": float64(1)},
		{"state": float64(0)},
		{"event": "reset0"},
		{"state": float64(1)},
		{"value": float64(1)},
	}, lines)
}

func TestRunCommandJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flux.db")
	cmd, _, _ := newTestRunCommand("text", "set 20\ninc\n", "--db", dbPath, "--name", "demo")

	require.NoError(t, cmd.Execute())

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	stores, err := j.Stores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"demo"}, stores)

	entries, err := j.Entries(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var kinds []journal.Kind
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []journal.Kind{
		journal.KindMutation, journal.KindEvent,
		journal.KindMutation, journal.KindEvent,
	}, kinds)
	assert.Equal(t, int64(2), entries[3].Step)
}

func TestRunCommandRejectsBadSettings(t *testing.T) {
	cmd, _, _ := newTestRunCommand("text", "", "--reset-delay", "0s")

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "FLUX_RESET_DELAY must be positive")
}

func TestRunCommandRejectsBadEnvironment(t *testing.T) {
	t.Setenv("FLUX_TICK_INTERVAL", "often")
	cmd, _, _ := newTestRunCommand("text", "")

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid environment")
}

func TestRunCommandStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never returns stands in for an idle terminal.
	cmd, _, _ := newTestRunCommand("text", "")
	cmd.SetIn(blockingReader{})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after its context was cancelled")
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func TestApplyConfig(t *testing.T) {
	cmd, _, _ := newTestRunCommand("text", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--reset-delay", "3s", "--name", "flagged"}))

	opts := &RunOptions{RootOptions: &RootOptions{}}
	opts.ResetDelay = 3 * time.Second
	opts.Name = "flagged"
	opts.applyConfig(cmd.Flags(), config.Config{
		Database:     "env.db",
		StoreName:    "from-env",
		ResetDelay:   time.Minute,
		ClampDelay:   2 * time.Second,
		TickInterval: 4 * time.Second,
	})

	assert.Equal(t, "env.db", opts.Database)
	assert.Equal(t, "flagged", opts.Name)
	assert.Equal(t, 3*time.Second, opts.ResetDelay)
	assert.Equal(t, 2*time.Second, opts.ClampDelay)
	assert.Equal(t, 4*time.Second, opts.TickInterval)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"", command{}},
		{"   ", command{}},
		{"set 4", command{kind: commandSend, action: counter.Set(4)}},
		{"SET -7", command{kind: commandSend, action: counter.Set(-7)}},
		{"inc", command{kind: commandSend, action: counter.Increment()}},
		{"+", command{kind: commandSend, action: counter.Increment()}},
		{"dec", command{kind: commandSend, action: counter.Decrement()}},
		{"start", command{kind: commandSend, action: counter.StartTicking()}},
		{"stop", command{kind: commandSend, action: counter.StopTicking()}},
		{"state", command{kind: commandState}},
		{"help", command{kind: commandHelp}},
		{"quit", command{kind: commandQuit}},
		{"exit", command{kind: commandQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"set", "set takes one integer argument"},
		{"set 1 2", "set takes one integer argument"},
		{"set x", `set "x": not an integer`},
		{"inc 2", "inc takes no arguments"},
		{"jump", `unknown command "jump"`},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := parseCommand(tt.line)
			require.Error(t, err)
			assert.EqualError(t, err, tt.want)
		})
	}
}
