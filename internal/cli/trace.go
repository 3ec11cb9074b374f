package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/roach88/flux/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Store    string // optional - filter to one store
	Kind     string // optional - "mutation" or "event"
}

// TraceEntry is one journal row as shown by the trace command.
type TraceEntry struct {
	ID      int64           `json:"id"`
	Store   string          `json:"store"`
	Step    int64           `json:"step"`
	Kind    journal.Kind    `json:"kind"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Stores  []string     `json:"stores"`
	Entries []TraceEntry `json:"entries"`
	Stats   TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEntries int   `json:"total_entries"`
	Mutations    int   `json:"mutations"`
	Events       int   `json:"events"`
	LastStep     int64 `json:"last_step"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a store",
		Long: `Read back what stores reduced and emitted, step by step, from a journal
written by "flux run --db".

Each entry is a reduced mutation or an emitted event, tagged with the
reduce step it belongs to. Events of asynchronous effects carry the step
of the reduce that started them.

Examples:
  flux trace --db ./flux.db
  flux trace --db ./flux.db --store counter --kind event
  flux trace --db ./flux.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Store, "store", "", "only show this store")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show entries of this kind (mutation|event)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	kind := journal.Kind(opts.Kind)
	if kind != "" && kind != journal.KindMutation && kind != journal.KindEvent {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be mutation or event", opts.Kind))
	}

	// Opening a missing path would create an empty journal.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	stores, err := j.Stores(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list stores", err)
	}

	entries, err := j.Entries(ctx, opts.Store)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read entries", err)
	}

	result := TraceResult{Stores: stores, Entries: []TraceEntry{}}
	if opts.Store != "" {
		result.Stores = []string{opts.Store}
	}
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		result.Entries = append(result.Entries, TraceEntry(e))
		result.Stats.add(e)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	formatter.VerboseLog("read %d entries from %s", len(entries), opts.Database)

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	if len(result.Entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No entries found.")
		return nil
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func (s *TraceStats) add(e journal.Entry) {
	s.TotalEntries++
	switch e.Kind {
	case journal.KindMutation:
		s.Mutations++
	case journal.KindEvent:
		s.Events++
	}
	if e.Step > s.LastStep {
		s.LastStep = e.Step
	}
}

// outputTraceText prints the entries grouped by store. Entries arrive
// ordered by store, so a new header starts whenever the store changes.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	current := ""
	for _, e := range result.Entries {
		if e.Store != current {
			if current != "" {
				fmt.Fprintln(w)
			}
			current = e.Store
			fmt.Fprintf(w, "=== %s ===\n", current)
		}
		fmt.Fprintf(w, "  [%d] %-8s %s\n", e.Step, e.Kind, formatPayload(e.Payload, verbose))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Entries:   %d\n", result.Stats.TotalEntries)
	fmt.Fprintf(w, "  Mutations: %d\n", result.Stats.Mutations)
	fmt.Fprintf(w, "  Events:    %d\n", result.Stats.Events)
	fmt.Fprintf(w, "  Last step: %d\n", result.Stats.LastStep)

	return nil
}

// formatPayload renders a payload on one line, or indented under its entry
// in verbose mode.
func formatPayload(payload json.RawMessage, verbose bool) string {
	if !verbose {
		return string(pretty.Ugly(payload))
	}
	indented := bytes.TrimRight(pretty.PrettyOptions(payload, &pretty.Options{
		Width:    80,
		Prefix:   "      ",
		Indent:   "  ",
		SortKeys: true,
	}), "\n")
	return "\n" + string(indented)
}
