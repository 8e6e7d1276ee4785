package kernel

import (
	"bytes"
	"errors"
	"runtime"
	"testing"
)

func TestStackFillPattern(t *testing.T) {
	p := stackPool{size: 300, guard: 16}
	st, err := p.alloc()
	if err != nil {
		t.Fatalf("alloc() error = %v", err)
	}
	for i, b := range st.mem {
		if b != byte(i) {
			t.Fatalf("mem[%d] = %#x, want %#x", i, b, byte(i))
		}
	}
	if !st.intact() {
		t.Fatal("intact() = false on a fresh stack")
	}
	st.mem[15] ^= 0xFF
	if st.intact() {
		t.Fatal("intact() = true with a disturbed guard byte")
	}
}

func TestStackPoolLimitAndRelease(t *testing.T) {
	p := stackPool{size: 128, guard: 8, limit: 1}
	st, err := p.alloc()
	if err != nil {
		t.Fatalf("alloc() error = %v", err)
	}
	if _, err := p.alloc(); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("alloc() over limit error = %v, want ErrOutOfMemory", err)
	}
	p.free(st)
	if p.allocs != 1 || p.frees != 1 || p.live != 0 {
		t.Fatalf("pool allocs=%d frees=%d live=%d, want 1 1 0", p.allocs, p.frees, p.live)
	}
	if err := st.push([]byte{1}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("push() on released stack error = %v, want ErrInvalidState", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("second free() did not panic")
		}
	}()
	p.free(st)
}

func TestFramePushPop(t *testing.T) {
	p := stackPool{size: 128, guard: 8}
	st, _ := p.alloc()

	if err := st.push([]byte("data")); err != nil {
		t.Fatalf("push() error = %v", err)
	}
	want := frame{id: 7, seq: 42, resume: 3, reason: reasonPreempt, status: StatusYield}
	sp, err := st.pushFrame(want)
	if err != nil {
		t.Fatalf("pushFrame() error = %v", err)
	}
	if sp != 128-4-frameSize {
		t.Fatalf("pushFrame() sp = %d, want %d", sp, 128-4-frameSize)
	}
	got, err := st.popFrame(sp)
	if err != nil {
		t.Fatalf("popFrame() error = %v", err)
	}
	if got != want {
		t.Fatalf("popFrame() = %+v, want %+v", got, want)
	}
	b, err := st.pop(4)
	if err != nil || string(b) != "data" {
		t.Fatalf("pop() = %q, %v, want %q", b, err, "data")
	}
	if _, err := st.pop(1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("pop() past top error = %v, want ErrInvalidState", err)
	}
}

func TestPopFrameRejectsCorruption(t *testing.T) {
	p := stackPool{size: 128, guard: 8}
	st, _ := p.alloc()
	sp, _ := st.pushFrame(frame{id: 1, reason: reasonYield, status: StatusRun})

	st.mem[sp+1] ^= 0xFF
	if _, err := st.popFrame(sp); !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("popFrame() of corrupted frame error = %v, want ErrStackOverflow", err)
	}
	if _, err := st.popFrame(sp + 4); !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("popFrame() at wrong sp error = %v, want ErrStackOverflow", err)
	}
}

func TestCreateBuildsBootstrapFrame(t *testing.T) {
	s := newTestScheduler(t, Config{StackSize: 512})
	task := mustCreate(t, s, func(*Task, any) {}, nil)

	if task.sp != 512-frameSize {
		t.Fatalf("sp = %d, want %d", task.sp, 512-frameSize)
	}
	f, ok := decodeFrame(task.stack.mem[task.sp:])
	if !ok {
		t.Fatal("decodeFrame() ok = false for bootstrap frame")
	}
	if f.id != task.ID() || f.reason != reasonBootstrap || f.status != StatusReady || f.resume != 0 {
		t.Fatalf("bootstrap frame = %+v", f)
	}
	// Everything below the frame still carries the fill pattern.
	for i := 0; i < task.sp; i++ {
		if task.stack.mem[i] != byte(i) {
			t.Fatalf("mem[%d] = %#x, want fill pattern", i, task.stack.mem[i])
		}
	}
	waitAll(t, s)
}

func TestStackDataSurvivesSwitches(t *testing.T) {
	s := newTestScheduler(t, Config{})

	var got []byte
	var used int
	mustCreate(t, s, func(task *Task, _ any) {
		if err := task.Push([]byte("abc")); err != nil {
			t.Errorf("Push() error = %v", err)
		}
		_ = task.Yield()
		used = task.StackUsed()
		got, _ = task.Pop(3)
	}, nil)
	mustCreate(t, s, func(task *Task, _ any) {
		_ = task.Push(bytes.Repeat([]byte{0xEE}, 100))
		_ = task.Yield()
	}, nil)

	waitAll(t, s)

	if string(got) != "abc" {
		t.Fatalf("Pop() = %q, want %q", got, "abc")
	}
	if used != 3 {
		t.Fatalf("StackUsed() = %d, want 3", used)
	}
}

func TestGuardOverflowKillsTask(t *testing.T) {
	s := newTestScheduler(t, Config{StackSize: 256, GuardSize: 64})

	var resumed bool
	bad := mustCreate(t, s, func(task *Task, _ any) {
		// Reaches into the guard region without passing the bottom.
		if err := task.Push(make([]byte, 200)); err != nil {
			t.Errorf("Push() error = %v", err)
		}
		_ = task.Yield()
		resumed = true
	}, nil)
	var neighbour int
	mustCreate(t, s, func(task *Task, _ any) {
		for i := 0; i < 3; i++ {
			neighbour++
			_ = task.Yield()
		}
	}, nil)

	waitAll(t, s)

	if resumed {
		t.Fatal("task resumed after overflowing its guard")
	}
	if !errors.Is(bad.Err(), ErrStackOverflow) {
		t.Fatalf("Err() = %v, want ErrStackOverflow", bad.Err())
	}
	if neighbour != 3 {
		t.Fatalf("neighbour ran %d times, want 3", neighbour)
	}
	if got := s.Stats().StackFrees; got != 2 {
		t.Fatalf("Stats().StackFrees = %d, want 2", got)
	}
}

func TestPushPastBottomKillsTask(t *testing.T) {
	s := newTestScheduler(t, Config{StackSize: 256, GuardSize: 64})

	var after bool
	bad := mustCreate(t, s, func(task *Task, _ any) {
		_ = task.Push(make([]byte, 300))
		after = true
	}, nil)

	waitAll(t, s)

	if after {
		t.Fatal("task continued after pushing past its stack bottom")
	}
	if !errors.Is(bad.Err(), ErrStackOverflow) {
		t.Fatalf("Err() = %v, want ErrStackOverflow", bad.Err())
	}
}

func TestCorruptSavedFrameKillsTask(t *testing.T) {
	s := newTestScheduler(t, Config{})

	var ran bool
	task := mustCreate(t, s, func(*Task, any) { ran = true }, nil)
	task.stack.mem[task.sp] ^= 0xFF

	waitAll(t, s)

	if ran {
		t.Fatal("task with a corrupted frame ran")
	}
	if !errors.Is(task.Err(), ErrStackOverflow) {
		t.Fatalf("Err() = %v, want ErrStackOverflow", task.Err())
	}
}

func TestCorruptFrameOfParkedTaskReleasesGoroutine(t *testing.T) {
	before := runtime.NumGoroutine()
	s := newTestScheduler(t, Config{})

	var victim *Task
	unwound, resumed := false, false
	victim = mustCreate(t, s, func(task *Task, _ any) {
		defer func() { unwound = true }()
		_ = task.Yield()
		resumed = true
	}, nil)
	mustCreate(t, s, func(*Task, any) {
		victim.stack.mem[victim.sp] ^= 0xFF
	}, nil)

	waitAll(t, s)

	if resumed {
		t.Fatal("task with a corrupted frame resumed")
	}
	if !unwound {
		t.Fatal("killed task did not unwind")
	}
	if !errors.Is(victim.Err(), ErrStackOverflow) {
		t.Fatalf("Err() = %v, want ErrStackOverflow", victim.Err())
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	waitGoroutines(t, before)
}

func TestInitRejectsTinyStack(t *testing.T) {
	s := New(Config{StackSize: 64, GuardSize: 32})
	if err := s.Init(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Init() error = %v, want ErrInvalidState", err)
	}
}
