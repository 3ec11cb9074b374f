package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/flux/internal/config"
	"github.com/roach88/flux/internal/counter"
	"github.com/roach88/flux/internal/journal"
	"github.com/roach88/flux/internal/observability"
	"github.com/roach88/flux/internal/scheduler"
	"github.com/roach88/flux/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database     string
	Name         string
	Initial      int
	ResetDelay   time.Duration
	ClampDelay   time.Duration
	TickInterval time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a counter store from stdin",
		Long: `Start a counter store on a goroutine-affine loop and feed it commands,
one per line, from stdin:

  set N      set the value to N
  inc, dec   add or subtract one
  start      start ticking (one increment per tick interval)
  stop       stop ticking
  state      print the current value
  help       list commands
  quit       stop the store

Every state change and event is printed as it happens. Settings default to
the FLUX_* environment variables; flags override them.

The store stops at "quit" or at the end of input. Pending delays, such as a
reset that has not fired yet, are cancelled then.

Example:
  flux run --db ./flux.db --reset-delay 2s
  printf 'set 20\ninc\nstate\n' | flux run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (FLUX_DB)")
	cmd.Flags().StringVar(&opts.Name, "name", "counter", "store name (FLUX_STORE_NAME)")
	cmd.Flags().IntVar(&opts.Initial, "initial", 0, "initial counter value")
	cmd.Flags().DurationVar(&opts.ResetDelay, "reset-delay", counter.DefaultResetDelay, "delay before a high value resets (FLUX_RESET_DELAY)")
	cmd.Flags().DurationVar(&opts.ClampDelay, "clamp-delay", counter.DefaultClampDelay, "delay before a very high value clamps (FLUX_CLAMP_DELAY)")
	cmd.Flags().DurationVar(&opts.TickInterval, "tick-interval", counter.DefaultTickInterval, "ticker interval (FLUX_TICK_INTERVAL)")

	return cmd
}

// applyConfig fills every flag the user did not set from cfg.
func (o *RunOptions) applyConfig(flags *pflag.FlagSet, cfg config.Config) {
	if !flags.Changed("db") {
		o.Database = cfg.Database
	}
	if !flags.Changed("name") {
		o.Name = cfg.StoreName
	}
	if !flags.Changed("reset-delay") {
		o.ResetDelay = cfg.ResetDelay
	}
	if !flags.Changed("clamp-delay") {
		o.ClampDelay = cfg.ClampDelay
	}
	if !flags.Changed("tick-interval") {
		o.TickInterval = cfg.TickInterval
	}
}

func (o *RunOptions) settings(level slog.Level) config.Config {
	return config.Config{
		Database:     o.Database,
		LogLevel:     level,
		StoreName:    o.Name,
		ResetDelay:   o.ResetDelay,
		ClampDelay:   o.ClampDelay,
		TickInterval: o.TickInterval,
	}
}

func runStore(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}
	opts.applyConfig(cmd.Flags(), cfg)
	if err := opts.settings(cfg.LogLevel).Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}

	logLevel := cfg.LogLevel
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	loop := scheduler.NewLoop(scheduler.WithLoopLogger(logger))

	env := counter.NewEnvironment(loop)
	env.ResetDelay = opts.ResetDelay
	env.ClampDelay = opts.ClampDelay
	env.TickInterval = opts.TickInterval

	storeOpts := []store.Option{
		store.WithName(opts.Name),
		store.WithScheduler(loop),
		store.WithLogger(logger),
		store.WithMetrics(observability.NewMetricsRecorder()),
	}

	if opts.Database != "" {
		logger.Info("opening journal", "path", opts.Database)
		j, err := journal.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		storeOpts = append(storeOpts, store.WithObserver(j.Observer(opts.Name, logger)))
	}

	st := counter.New(opts.Initial, env, storeOpts...)
	p := &printer{w: cmd.OutOrStdout(), json: opts.Format == "json"}

	// Subscribing replays the initial state here; every later callback runs
	// on the loop.
	states := st.States().Subscribe(p.state, nil)
	defer states.Cancel()
	events := st.Events().Subscribe(p.event, nil)
	defer events.Cancel()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("store started", "store", opts.Name, "initial", opts.Initial)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer loop.Stop()
		return readCommands(gctx, readLines(gctx, cmd.InOrStdin()), st, loop, p)
	})

	err = g.Wait()

	// The loop has returned, so nothing else touches the store.
	st.Close()
	logger.Info("store stopped", "store", opts.Name, "value", st.State().Value)

	if err != nil {
		return WrapExitError(ExitFailure, "store loop failed", err)
	}
	return nil
}

// readLines scans r on its own goroutine. A read blocked on a terminal cannot
// be interrupted, so the goroutine is abandoned, not joined, on shutdown.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// readCommands feeds parsed lines to the store until input ends, quit is
// read, or ctx is done. Output is scheduled on the loop so it interleaves
// with state changes in order.
func readCommands(ctx context.Context, lines <-chan string, st *counter.Store, loop *scheduler.Loop, p *printer) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}

			c, err := parseCommand(line)
			if err != nil {
				loop.Schedule(func() { p.fail(err) })
				continue
			}

			switch c.kind {
			case commandSend:
				st.Send(c.action)
			case commandState:
				loop.Schedule(func() { p.value(st.State()) })
			case commandHelp:
				loop.Schedule(p.help)
			case commandQuit:
				return nil
			}
		}
	}
}

type commandKind int

const (
	commandNone commandKind = iota
	commandSend
	commandState
	commandHelp
	commandQuit
)

type command struct {
	kind   commandKind
	action counter.Action
}

// parseCommand reads one input line. Blank lines parse to commandNone.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	if name == "set" {
		if len(args) != 1 {
			return command{}, fmt.Errorf("set takes one integer argument")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return command{}, fmt.Errorf("set %q: not an integer", args[0])
		}
		return command{kind: commandSend, action: counter.Set(n)}, nil
	}

	var c command
	switch name {
	case "inc", "+":
		c = command{kind: commandSend, action: counter.Increment()}
	case "dec", "-":
		c = command{kind: commandSend, action: counter.Decrement()}
	case "start":
		c = command{kind: commandSend, action: counter.StartTicking()}
	case "stop":
		c = command{kind: commandSend, action: counter.StopTicking()}
	case "state":
		c = command{kind: commandState}
	case "help", "?":
		c = command{kind: commandHelp}
	case "quit", "exit":
		c = command{kind: commandQuit}
	default:
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}

	if len(args) > 0 {
		return command{}, fmt.Errorf("%s takes no arguments", name)
	}
	return c, nil
}

// printer writes run output as text lines or as one JSON object per line.
type printer struct {
	w    io.Writer
	json bool
}

type stateLine struct {
	State int `json:"state"`
}

type eventLine struct {
	Event counter.EventKind `json:"event"`
	Value int               `json:"value,omitempty"`
}

type valueLine struct {
	Value int `json:"value"`
}

type errorLine struct {
	Error string `json:"error"`
}

func (p *printer) state(s counter.State) {
	if p.json {
		p.encode(stateLine{State: s.Value})
		return
	}
	fmt.Fprintf(p.w, "state: %d\n", s.Value)
}

func (p *printer) event(e counter.Event) {
	if p.json {
		p.encode(eventLine{Event: e.Kind, Value: e.Value})
		return
	}
	fmt.Fprintf(p.w, "event: %s\n", e)
}

func (p *printer) value(s counter.State) {
	if p.json {
		p.encode(valueLine{Value: s.Value})
		return
	}
	fmt.Fprintf(p.w, "value: %d\n", s.Value)
}

func (p *printer) fail(err error) {
	if p.json {
		p.encode(errorLine{Error: err.Error()})
		return
	}
	fmt.Fprintf(p.w, "error: %v\n", err)
}

func (p *printer) help() {
	if p.json {
		return
	}
	fmt.Fprintln(p.w, "commands: set N, inc, dec, start, stop, state, help, quit")
}

func (p *printer) encode(v any) {
	_ = json.NewEncoder(p.w).Encode(v)
}
