package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taskring/app"
	"taskring/internal/config"
)

type runOptions struct {
	tasks       int
	rounds      int
	spinner     bool
	sleeperNaps int
	sleeperNap  time.Duration

	tickSource   string
	tickInterval time.Duration
	tickSignal   string
	stackSize    int
	guardSize    int
	maxTasks     int
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo workload and print the task trace",
		Long: `Run starts one supervisory task and the requested workload: counting tasks
that yield after every line, an optional spinner that never yields, and an
optional sleeper. It returns when every task has finished.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			opts.apply(cmd.Flags(), &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return opts.run(cmd, cfg, root)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.tasks, "tasks", "n", 3, "Number of counting tasks")
	f.IntVarP(&opts.rounds, "rounds", "r", 3, "Lines printed by each counting task")
	f.BoolVar(&opts.spinner, "spinner", false, "Add a task that only stops running when preempted")
	f.IntVar(&opts.sleeperNaps, "sleeper", 0, "Add a task that sleeps this many times")
	f.DurationVar(&opts.sleeperNap, "sleep", 100*time.Millisecond, "Sleeper nap length")
	addKernelFlags(f, opts)
	return cmd
}

// addKernelFlags registers the flags that override the config file.
func addKernelFlags(f *pflag.FlagSet, opts *runOptions) {
	f.StringVar(&opts.tickSource, "tick-source", config.TickSignal, "Preemption source (signal, ticker, none)")
	f.DurationVar(&opts.tickInterval, "tick-interval", time.Second, "Time between preemption ticks")
	f.StringVar(&opts.tickSignal, "signal", "SIGUSR1", "Signal sent by the tick companion")
	f.IntVar(&opts.stackSize, "stack-size", 0, "Per-task stack bytes")
	f.IntVar(&opts.guardSize, "guard-size", 0, "Stack guard bytes")
	f.IntVar(&opts.maxTasks, "max-tasks", 0, "Live task limit, supervisor included")
}

func (o *runOptions) apply(f *pflag.FlagSet, cfg *config.Config) {
	if f.Changed("tick-source") {
		cfg.Tick.Source = o.tickSource
	}
	if f.Changed("tick-interval") {
		cfg.Tick.Interval = o.tickInterval
	}
	if f.Changed("signal") {
		cfg.Tick.Signal = o.tickSignal
	}
	if f.Changed("stack-size") {
		cfg.Stack.Size = o.stackSize
	}
	if f.Changed("guard-size") {
		cfg.Stack.Guard = o.guardSize
	}
	if f.Changed("max-tasks") {
		cfg.Stack.MaxTasks = o.maxTasks
	}
}

func (o *runOptions) run(cmd *cobra.Command, cfg config.Config, root *rootOptions) error {
	log := root.logger
	runID := uuid.NewString()
	ticks, err := newTickSource(cfg.Tick, runID, log)
	if err != nil {
		return err
	}

	kcfg := cfg.Kernel()
	kcfg.Ticks = ticks
	kcfg.RunID = runID
	kcfg.Logger = log

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	rep, err := app.Run(ctx, app.Config{
		Kernel:      kcfg,
		Tasks:       o.tasks,
		Rounds:      o.rounds,
		Spinner:     o.spinner,
		SleeperNaps: o.sleeperNaps,
		SleeperNap:  o.sleeperNap,
		Out:         out,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	printReport(out, rep)
	if len(rep.Failures) > 0 {
		return fmt.Errorf("%d task(s) failed: %w", len(rep.Failures), rep.Failures[0])
	}
	return nil
}

func printReport(w io.Writer, rep app.Report) {
	st := rep.Stats
	fmt.Fprintf(w, "\nrun %s finished in %s\n", rep.RunID, rep.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  tasks:    %s created, %s deleted\n", humanize.Comma(int64(st.Created)), humanize.Comma(int64(st.Deleted)))
	fmt.Fprintf(w, "  switches: %s (%s preempted, %s ticks)\n",
		humanize.Comma(int64(st.Switches)), humanize.Comma(int64(st.Preemptions)), humanize.Comma(int64(st.Ticks)))
	fmt.Fprintf(w, "  stacks:   %s each, %s allocated, %s released\n",
		humanize.IBytes(uint64(st.StackSize)), humanize.Comma(int64(st.StackAllocs)), humanize.Comma(int64(st.StackFrees)))
	if rep.Slices > 0 {
		fmt.Fprintf(w, "  spinner:  %s spins over %d slices\n", humanize.Comma(int64(rep.Spins)), rep.Slices)
	}
	if rep.Panics > 0 {
		fmt.Fprintf(w, "  panics:   %d\n", rep.Panics)
	}
}
