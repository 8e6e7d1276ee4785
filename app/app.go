// Package app assembles the demo workload: a scheduler, a set of counting
// tasks, and optionally a non-cooperative spinner and a sleeper.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"taskring/internal/buildinfo"
	"taskring/internal/logging"
	"taskring/kernel"
	"taskring/tasks/counter"
	"taskring/tasks/sleeper"
	"taskring/tasks/spinner"
)

type Config struct {
	Kernel kernel.Config

	// Tasks is the number of counting tasks, named A, B, C and so on.
	Tasks  int
	Rounds int

	// Spinner adds a task that only yields when preempted. It needs a tick
	// source.
	Spinner bool

	// SleeperNaps adds a task sleeping SleeperNap between lines.
	SleeperNaps int
	SleeperNap  time.Duration

	// Out receives the task trace.
	Out    io.Writer
	Logger *slog.Logger
}

// Report summarizes a finished run.
type Report struct {
	RunID    string
	Stats    kernel.Stats
	Spins    uint64
	Slices   int
	Panics   int
	Failures []error
	Elapsed  time.Duration
}

// Run executes the workload until every task has finished or ctx is done.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if cfg.Tasks < 0 || cfg.Tasks > 26 {
		return Report{}, fmt.Errorf("app: task count %d out of range 0..26", cfg.Tasks)
	}
	if cfg.Spinner && cfg.Kernel.Ticks == nil {
		return Report{}, errors.New("app: spinner needs a tick source")
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}

	kcfg := cfg.Kernel
	if kcfg.Logger == nil {
		kcfg.Logger = log
	}
	panics := panicRecorder(log, kcfg.OnPanic)
	kcfg.OnPanic = panics.record

	s := kernel.New(kcfg)
	if err := s.Init(); err != nil {
		return Report{}, fmt.Errorf("init scheduler: %w", err)
	}

	start := time.Now()
	var tasks []*kernel.Task
	spawn := func(fn kernel.TaskFunc) error {
		t, err := s.Create(fn, nil)
		if err != nil {
			return err
		}
		tasks = append(tasks, t)
		return nil
	}

	finished := 0
	for i := 0; i < cfg.Tasks; i++ {
		name := string(rune('A' + i))
		c := counter.New(name, cfg.Rounds, cfg.Out, func() { finished++ })
		if err := spawn(c.Run); err != nil {
			return Report{}, fmt.Errorf("create task %s: %w", name, err)
		}
	}
	var sp *spinner.Task
	if cfg.Spinner {
		sp = spinner.New(cfg.Out, func() bool { return finished == cfg.Tasks })
		if err := spawn(sp.Run); err != nil {
			return Report{}, fmt.Errorf("create spinner: %w", err)
		}
	}
	if cfg.SleeperNaps > 0 {
		if err := spawn(sleeper.New(cfg.SleeperNaps, cfg.SleeperNap, cfg.Out).Run); err != nil {
			return Report{}, fmt.Errorf("create sleeper: %w", err)
		}
	}

	log.Info("run started", "run", s.RunID(), "build", buildinfo.Short(), "tasks", len(tasks))
	if err := s.Wait(ctx); err != nil {
		return Report{}, fmt.Errorf("wait: %w", err)
	}
	if err := s.Shutdown(); err != nil {
		return Report{}, fmt.Errorf("shutdown: %w", err)
	}

	rep := Report{
		RunID:   s.RunID(),
		Stats:   s.Stats(),
		Panics:  panics.count,
		Elapsed: time.Since(start),
	}
	if sp != nil {
		rep.Spins = sp.Spins()
		rep.Slices = sp.Slices()
	}
	for _, t := range tasks {
		if err := t.Err(); err != nil {
			rep.Failures = append(rep.Failures, err)
		}
	}
	log.Info("run finished", "run", rep.RunID, "switches", rep.Stats.Switches, "failures", len(rep.Failures))
	return rep, nil
}
