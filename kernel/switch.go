package kernel

import (
	"fmt"
	"runtime"
	"time"
)

// execContext is the execution context behind a task.
//
// Each task body runs on its own goroutine, parked on a one-slot wake
// semaphore whenever the task is suspended. Only the context holding the
// baton touches scheduler state; handing the baton over is a send on the
// next context's semaphore. A false send hands the baton to a killed task
// so it can unwind.
type execContext struct {
	wake chan bool
}

func (c *execContext) init() {
	c.wake = make(chan bool, 1)
}

func (c *execContext) resume() {
	c.wake <- true
}

func (c *execContext) kill() {
	c.wake <- false
}

// park blocks until the baton comes back. A killed task does not return:
// its goroutine unwinds, and run hands the baton on once every deferred
// call of the body has finished.
func (c *execContext) park() {
	if !<-c.wake {
		runtime.Goexit()
	}
}

// switchTask moves execution from the running task to the one the scheduler
// selects. It returns in the caller once the caller is selected again, and
// never returns if the caller was killed.
func (s *Scheduler) switchTask(reason switchReason) {
	out := s.running
	s.save(out, reason)
	if out.status == StatusKill {
		// The body's defers run first, still holding the baton; run
		// dispatches once the goroutine has unwound.
		runtime.Goexit()
	}
	if s.dispatch(out, reason) {
		return
	}
	out.ctx.park()
}

// dispatch runs the scheduler core and transfers the baton from out to the
// selected task. It reports whether out was selected again, in which case
// the baton never left. After a false return out must not touch scheduler
// state.
func (s *Scheduler) dispatch(out *Task, reason switchReason) bool {
	s.preempt.Store(false)
	for {
		in := s.schedule()
		if in == nil {
			panic("kernel: no runnable task")
		}
		if in.status == StatusKill {
			// A killed task still parked on its context.
			s.log.Debug("unwind", "from", out.id, "to", in.id)
			in.ctx.kill()
			return false
		}
		f, err := s.restore(in)
		if err != nil {
			if in == s.root {
				panic(fmt.Sprintf("kernel: supervisory task frame lost: %v", err))
			}
			s.fault(in, err)
			if in.started {
				s.log.Debug("unwind", "from", out.id, "to", in.id)
				in.ctx.kill()
				return false
			}
			continue
		}
		s.seq++
		if in == out {
			return true
		}
		s.log.Debug("switch", "from", out.id, "to", in.id, "reason", reason, "seq", s.seq)
		if f.reason == reasonBootstrap {
			in.started = true
			go s.run(in)
		} else {
			in.ctx.resume()
		}
		return false
	}
}

// save pushes the outgoing task's frame and records its stack pointer.
func (s *Scheduler) save(t *Task, reason switchReason) {
	if t.status == StatusKill {
		return
	}
	if !t.stack.intact() {
		if t == s.root {
			panic("kernel: supervisory task stack overflow")
		}
		s.fault(t, fmt.Errorf("%w: guard canary disturbed", ErrStackOverflow))
		return
	}
	t.resumes++
	sp, err := t.stack.pushFrame(frame{
		id:     t.id,
		seq:    s.seq,
		resume: t.resumes,
		reason: reason,
		status: t.status,
	})
	if err != nil {
		if t == s.root {
			panic(fmt.Sprintf("kernel: supervisory task: %v", err))
		}
		s.fault(t, err)
		return
	}
	t.sp = sp
}

// restore pops the incoming task's frame.
func (s *Scheduler) restore(t *Task) (frame, error) {
	f, err := t.stack.popFrame(t.sp)
	if err != nil {
		return frame{}, err
	}
	if f.id != t.id {
		return frame{}, fmt.Errorf("%w: frame belongs to task %d", ErrStackOverflow, f.id)
	}
	t.sp = t.stack.top
	return f, nil
}

// schedule applies the lifecycle state machine and returns the next task to
// run, or nil once the ring is empty.
func (s *Scheduler) schedule() *Task {
	out := s.running
	var cand *Task
	switch out.status {
	case StatusKill:
		cand = out.next
		if cand == nil {
			cand = s.root
		}
		s.remove(out)
		if out == cand {
			cand = nil
		}
	case StatusReady, StatusYield:
		out.status = StatusRun
		cand = s.successor(out)
	default:
		cand = s.successor(out)
	}

	for cand != nil {
		switch cand.status {
		case StatusReady, StatusYield, StatusRun:
			cand.status = StatusRun
			s.running = cand
			return cand
		case StatusSleep:
			if s.due(cand) {
				cand.status = StatusRun
				cand.woken = false
				cand.wakeAt = time.Time{}
				s.running = cand
				return cand
			}
			cand = s.successor(cand)
		case StatusKill:
			if cand.started {
				// Its goroutine must unwind before the task leaves the ring.
				s.running = cand
				return cand
			}
			next := s.successor(cand)
			if next == cand {
				next = nil
			}
			s.remove(cand)
			cand = next
		default:
			panic(fmt.Sprintf("kernel: task %d in unknown status %d", cand.id, cand.status))
		}
	}
	return nil
}

func (s *Scheduler) due(t *Task) bool {
	return t.woken || !s.now().Before(t.wakeAt)
}

// run is the entry of a task's execution context. However the body ends,
// by returning, panicking, Exit or a kill, the deferred dispatch runs last
// and passes the baton on.
func (s *Scheduler) run(t *Task) {
	defer func() {
		t.status = StatusKill
		s.dispatch(t, reasonExit)
	}()
	if err := s.call(t); err != nil && t.err == nil {
		t.err = err
	}
}

func (s *Scheduler) call(t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d panicked: %v", t.id, r)
			info := PanicInfo{TaskID: t.id, Value: r, Stack: captureStack()}
			s.log.Error("task panic", "task", t.id, "panic", r)
			if s.cfg.OnPanic != nil {
				s.cfg.OnPanic(info)
			}
		}
	}()
	t.fn(t, t.arg)
	return nil
}

func (s *Scheduler) exit(t *Task) {
	t.status = StatusKill
	s.switchTask(reasonExit)
}

// fault marks t as killed with err.
func (s *Scheduler) fault(t *Task, err error) {
	t.err = fmt.Errorf("task %d: %w", t.id, err)
	t.status = StatusKill
	s.log.Error("task fault", "task", t.id, "err", err)
}

// checkpoint performs an involuntary switch if a tick is pending.
func (s *Scheduler) checkpoint() bool {
	if s.running == nil || !s.preempt.Swap(false) {
		return false
	}
	t := s.running
	if t.status == StatusRun {
		t.status = StatusYield
	}
	s.preemptions++
	s.switchTask(reasonPreempt)
	return true
}
