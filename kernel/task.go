package kernel

import (
	"fmt"
	"time"
)

// TaskID identifies a task. IDs are assigned sequentially and never reused.
type TaskID uint32

// Status is the lifecycle state of a task.
type Status uint8

const (
	StatusReady Status = iota
	StatusRun
	StatusSleep
	StatusYield
	StatusKill
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusRun:
		return "RUN"
	case StatusSleep:
		return "SLEEP"
	case StatusYield:
		return "YIELD"
	case StatusKill:
		return "KILL"
	default:
		return "unknown"
	}
}

// TaskFunc is a task body. Returning from it terminates the task.
type TaskFunc func(t *Task, arg any)

// Task is a task control block and the handle passed to its body.
type Task struct {
	id     TaskID
	status Status
	stack  *stack
	sp     int

	next *Task
	prev *Task

	s   *Scheduler
	fn  TaskFunc
	arg any
	ctx execContext

	resumes uint64
	// started is set once the task's goroutine has been launched.
	started bool
	wakeAt  time.Time
	woken   bool
	err     error
}

// ID returns the task ID.
func (t *Task) ID() TaskID { return t.id }

// Status returns the last recorded lifecycle state.
func (t *Task) Status() Status { return t.status }

// Err returns the fatal error that ended the task, if any.
func (t *Task) Err() error { return t.err }

// StackUsed returns the number of stack bytes in use, or 0 once released.
func (t *Task) StackUsed() int {
	if t.stack == nil {
		return 0
	}
	return t.stack.used()
}

func (t *Task) current() error {
	if t.s == nil || t.s.running != t {
		return fmt.Errorf("%w: task %d is not running", ErrInvalidState, t.id)
	}
	return nil
}

// Yield suspends the task and lets the next task in the ring run.
func (t *Task) Yield() error {
	if err := t.current(); err != nil {
		return err
	}
	t.s.switchTask(reasonYield)
	return nil
}

// Exit terminates the task. It does not return when called by the running task.
func (t *Task) Exit() error {
	if err := t.current(); err != nil {
		return err
	}
	return t.s.Terminate()
}

// Checkpoint is a preemption point: if a tick arrived since the last switch,
// the task is suspended involuntarily. It reports whether that happened.
// Nothing else can take the processor from a task, so long computations
// must call it regularly.
func (t *Task) Checkpoint() bool {
	if t.current() != nil {
		return false
	}
	return t.s.checkpoint()
}

// Sleep blocks the task for at least d. The task is not selected until the
// deadline passes or Scheduler.Wake is called for it.
func (t *Task) Sleep(d time.Duration) error {
	if err := t.current(); err != nil {
		return err
	}
	if t == t.s.root {
		return fmt.Errorf("%w: supervisory task cannot sleep", ErrInvalidState)
	}
	if d <= 0 {
		t.s.switchTask(reasonYield)
		return nil
	}
	t.status = StatusSleep
	t.wakeAt = t.s.now().Add(d)
	t.woken = false
	t.s.switchTask(reasonYield)
	return nil
}

// Push stores b on the task's own stack. Writing into the guard region is
// allowed and reported as an overflow at the next switch; pushing past the
// stack bottom ends the task immediately.
func (t *Task) Push(b []byte) error {
	if err := t.current(); err != nil {
		return err
	}
	if err := t.stack.push(b); err != nil {
		if t == t.s.root {
			return err
		}
		t.s.fault(t, err)
		t.s.switchTask(reasonExit)
		return err
	}
	t.s.checkpoint()
	return nil
}

// Pop removes and returns the n most recently pushed bytes.
func (t *Task) Pop(n int) ([]byte, error) {
	if err := t.current(); err != nil {
		return nil, err
	}
	b, err := t.stack.pop(n)
	if err != nil {
		return nil, err
	}
	t.s.checkpoint()
	return b, nil
}
