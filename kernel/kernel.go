package kernel

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TickSource delivers periodic preemption ticks.
//
// Start begins delivery on the returned channel. Stop ends delivery and
// closes that channel.
type TickSource interface {
	Start() (<-chan uint64, error)
	Stop() error
}

// Config controls a Scheduler.
type Config struct {
	StackSize int
	GuardSize int
	MaxTasks  int

	// Ticks drives preemption while the supervisory task waits. Nil disables
	// preemption.
	Ticks TickSource

	Logger *slog.Logger
	// RunID tags every log record; a random UUID is used when empty.
	RunID string

	// Now is the clock used for sleep deadlines.
	Now func() time.Time

	// OnPanic is called when a task body panics. The task is terminated.
	OnPanic func(PanicInfo)
}

// Scheduler is a cooperative round-robin scheduler.
//
// Exactly one task runs at a time: the supervisory task, which is the
// context that called Init, or one of the tasks created with Create.
//
// Scheduling is cooperative. Preemption is a request honored at the
// running task's next Checkpoint, Push or Pop; a task body is never
// suspended anywhere else.
type Scheduler struct {
	cfg  Config
	log  *slog.Logger
	now  func() time.Time
	pool stackPool

	root      *Task
	running   *Task
	taskCount int
	nextID    TaskID
	inited    bool

	seq         uint64
	created     uint64
	deleted     uint64
	preemptions uint64

	preempt atomic.Bool
	ticks   atomic.Uint64
}

// New creates a scheduler. Init must be called before any other operation.
func New(cfg Config) *Scheduler {
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.GuardSize <= 0 {
		cfg.GuardSize = DefaultGuardSize
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = DefaultMaxTasks
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		cfg: cfg,
		log: log.With("component", "kernel", "run", cfg.RunID),
		now: cfg.Now,
		pool: stackPool{
			size:  cfg.StackSize,
			guard: cfg.GuardSize,
			limit: cfg.MaxTasks,
		},
	}
}

// RunID returns the identifier attached to this scheduler's log records.
func (s *Scheduler) RunID() string { return s.cfg.RunID }

// Init creates the supervisory task and binds it to the calling context.
func (s *Scheduler) Init() error {
	if s.inited {
		return fmt.Errorf("%w: already initialized", ErrInvalidState)
	}
	if s.cfg.StackSize < MinStackSize(s.cfg.GuardSize) {
		return fmt.Errorf("%w: stack size %d too small for guard %d", ErrInvalidState, s.cfg.StackSize, s.cfg.GuardSize)
	}
	t, err := s.newTask(nil, nil)
	if err != nil {
		return err
	}
	s.inited = true
	t.status = StatusRun
	t.sp = len(t.stack.mem)
	s.insert(t)

	s.log.Debug("scheduler initialized", "supervisor", t.id, "stack_size", s.cfg.StackSize)
	return nil
}

// Create spawns a task that will run fn(task, arg) when first selected.
func (s *Scheduler) Create(fn TaskFunc, arg any) (*Task, error) {
	if !s.inited || s.root == nil {
		return nil, fmt.Errorf("%w: scheduler not initialized", ErrInvalidState)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: nil task function", ErrInvalidState)
	}
	t, err := s.newTask(fn, arg)
	if err != nil {
		return nil, err
	}
	// The bootstrap frame makes the first restore enter fn.
	sp, err := t.stack.pushFrame(frame{id: t.id, reason: reasonBootstrap, status: StatusReady})
	if err != nil {
		s.pool.free(t.stack)
		return nil, fmt.Errorf("create task: %w", err)
	}
	t.sp = sp
	s.insert(t)

	s.log.Debug("task created", "task", t.id, "live", s.taskCount)
	return t, nil
}

func (s *Scheduler) newTask(fn TaskFunc, arg any) (*Task, error) {
	st, err := s.pool.alloc()
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.nextID++
	s.created++
	t := &Task{
		id:     s.nextID,
		status: StatusReady,
		stack:  st,
		s:      s,
		fn:     fn,
		arg:    arg,
	}
	t.ctx.init()
	return t, nil
}

// Current returns the running task.
func (s *Scheduler) Current() *Task { return s.running }

// Yield suspends the running task in favour of the next one in the ring.
func (s *Scheduler) Yield() error {
	if !s.inited || s.running == nil {
		return fmt.Errorf("%w: scheduler not initialized", ErrInvalidState)
	}
	s.switchTask(reasonYield)
	return nil
}

// Terminate ends the running task. It does not return when it succeeds.
func (s *Scheduler) Terminate() error {
	if !s.inited || s.running == nil {
		return fmt.Errorf("%w: scheduler not initialized", ErrInvalidState)
	}
	if s.running == s.root {
		return fmt.Errorf("%w: supervisory task cannot terminate", ErrInvalidState)
	}
	s.exit(s.running)
	return nil
}

// Wake ends the sleep of task id early.
func (s *Scheduler) Wake(id TaskID) bool {
	t := s.lookup(id)
	if t == nil || t.status != StatusSleep {
		return false
	}
	t.woken = true
	return true
}

// Shutdown releases the supervisory task once it is the last live task.
// It is a no-op on an already empty scheduler.
func (s *Scheduler) Shutdown() error {
	if !s.inited {
		return fmt.Errorf("%w: scheduler not initialized", ErrInvalidState)
	}
	if s.root == nil {
		return nil
	}
	if s.running != s.root {
		return fmt.Errorf("%w: shutdown outside the supervisory task", ErrInvalidState)
	}
	if s.taskCount > 1 {
		return fmt.Errorf("%w: %d tasks still live", ErrInvalidState, s.taskCount-1)
	}
	s.remove(s.root)
	s.log.Debug("scheduler shut down")
	return nil
}

// Stats is a point-in-time view of scheduler counters.
type Stats struct {
	Live        int
	Created     uint64
	Deleted     uint64
	Switches    uint64
	Preemptions uint64
	Ticks       uint64
	StackSize   int
	StackAllocs uint64
	StackFrees  uint64
}

// Stats returns the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Live:        s.taskCount,
		Created:     s.created,
		Deleted:     s.deleted,
		Switches:    s.seq,
		Preemptions: s.preemptions,
		Ticks:       s.ticks.Load(),
		StackSize:   s.cfg.StackSize,
		StackAllocs: s.pool.allocs,
		StackFrees:  s.pool.frees,
	}
}
