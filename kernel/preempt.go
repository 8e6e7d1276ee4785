package kernel

import (
	"context"
	"fmt"
	"runtime"
)

// Wait runs the supervisory loop: it starts the tick source, keeps switching
// until every other task has terminated, then stops the tick source.
//
// Wait must be called by the supervisory task. It returns immediately when
// no other task is live. When ctx is done every other task is killed and
// unwound before Wait returns ctx's error.
//
// Ticks only request preemption; the switch happens when the running task
// next calls Checkpoint, Push or Pop. A task that loops without calling into
// the scheduler keeps the processor, and Wait does not return until it does.
func (s *Scheduler) Wait(ctx context.Context) error {
	if !s.inited || s.root == nil {
		return fmt.Errorf("%w: scheduler not initialized", ErrInvalidState)
	}
	if s.running != s.root {
		return fmt.Errorf("%w: wait called by task %d, not the supervisory task", ErrInvalidState, s.running.id)
	}
	if s.taskCount == 1 {
		return nil
	}

	stop, err := s.startTicks()
	if err != nil {
		return fmt.Errorf("start tick source: %w", err)
	}
	defer stop()

	var cause error
	for s.taskCount > 1 {
		if cause == nil {
			if cause = ctx.Err(); cause != nil {
				s.killAll(cause)
			}
		}
		s.switchTask(reasonYield)
		// Lets the tick pump run while the ring holds only sleepers.
		runtime.Gosched()
	}
	if cause != nil {
		s.log.Debug("wait aborted", "err", cause)
		return cause
	}
	s.log.Debug("all tasks terminated", "switches", s.seq, "ticks", s.ticks.Load())
	return nil
}

// killAll marks every task but the supervisor KILL. The ring walk that
// follows removes them, unwinding those whose goroutine has started.
func (s *Scheduler) killAll(cause error) {
	for t := s.root.next; t != nil; t = t.next {
		if t.status == StatusKill {
			continue
		}
		t.status = StatusKill
		if t.err == nil {
			t.err = fmt.Errorf("task %d: %w", t.id, cause)
		}
	}
}

func (s *Scheduler) startTicks() (func(), error) {
	src := s.cfg.Ticks
	if src == nil {
		return func() {}, nil
	}
	ch, err := src.Start()
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go s.pump(ch, done)
	return func() {
		if err := src.Stop(); err != nil {
			s.log.Warn("stop tick source", "err", err)
		}
		<-done
	}, nil
}

// pump turns ticks into preemption requests. It never touches the ring.
func (s *Scheduler) pump(ch <-chan uint64, done chan<- struct{}) {
	defer close(done)
	for range ch {
		s.ticks.Add(1)
		s.preempt.Store(true)
	}
}
