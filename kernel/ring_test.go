package kernel

import (
	"reflect"
	"testing"
	"time"
)

// newRing returns a scheduler with the supervisory task and n created tasks
// that have not run yet.
func newRing(t *testing.T, n int) (*Scheduler, []*Task) {
	t.Helper()
	s := newTestScheduler(t, Config{StackSize: 256, GuardSize: 16})
	tasks := []*Task{s.root}
	for i := 0; i < n; i++ {
		tasks = append(tasks, mustCreate(t, s, func(*Task, any) {}, nil))
	}
	return s, tasks
}

func checkRing(t *testing.T, s *Scheduler, want []TaskID) {
	t.Helper()
	snap := s.Snapshot()
	if snap.Count != len(want) {
		t.Fatalf("Count = %d, want %d", snap.Count, len(want))
	}
	if !reflect.DeepEqual(snap.Forward, want) {
		t.Fatalf("Forward = %v, want %v", snap.Forward, want)
	}
	back := make([]TaskID, len(want))
	for i, id := range want {
		back[len(want)-1-i] = id
	}
	if !reflect.DeepEqual(snap.Backward, back) {
		t.Fatalf("Backward = %v, want %v", snap.Backward, back)
	}
}

func TestRingInsertAppendsAtTail(t *testing.T) {
	s, tasks := newRing(t, 3)
	checkRing(t, s, []TaskID{1, 2, 3, 4})

	if s.root != tasks[0] || s.running != tasks[0] {
		t.Fatal("root and running should be the supervisory task")
	}
	if tasks[3].next != nil {
		t.Fatal("tail next should be nil, the ring is not circular by pointer")
	}
	if got := s.successor(tasks[3]); got != s.root {
		t.Fatalf("successor(tail) = task %d, want root", got.id)
	}
}

func TestRemoveNonRunningKeepsRunning(t *testing.T) {
	s, tasks := newRing(t, 3)
	s.running = tasks[1]

	s.remove(tasks[2])

	if s.running != tasks[1] {
		t.Fatalf("running = task %d, want task %d", s.running.id, tasks[1].id)
	}
	checkRing(t, s, []TaskID{1, 2, 4})
}

func TestRemoveRunningInteriorAdvances(t *testing.T) {
	s, tasks := newRing(t, 3)
	s.running = tasks[2]

	s.remove(tasks[2])

	if s.running != tasks[3] {
		t.Fatalf("running = task %d, want task %d", s.running.id, tasks[3].id)
	}
	checkRing(t, s, []TaskID{1, 2, 4})
}

func TestRemoveRunningTailFallsBack(t *testing.T) {
	s, tasks := newRing(t, 3)
	s.running = tasks[3]

	s.remove(tasks[3])

	if s.running != tasks[2] {
		t.Fatalf("running = task %d, want task %d", s.running.id, tasks[2].id)
	}
	checkRing(t, s, []TaskID{1, 2, 3})
}

func TestRemoveRootEmptiesScheduler(t *testing.T) {
	s, tasks := newRing(t, 0)

	s.remove(tasks[0])

	if s.root != nil || s.running != nil || s.taskCount != 0 {
		t.Fatalf("root=%v running=%v count=%d, want empty", s.root, s.running, s.taskCount)
	}
	if tasks[0].stack != nil {
		t.Fatal("root stack not released")
	}
}

func TestScheduleOutgoingTransitions(t *testing.T) {
	tests := []struct {
		name string
		in   Status
		want Status
	}{
		{"ready", StatusReady, StatusRun},
		{"yield", StatusYield, StatusRun},
		{"run", StatusRun, StatusRun},
		{"sleep", StatusSleep, StatusSleep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tasks := newRing(t, 2)
			s.running = tasks[1]
			tasks[1].status = tt.in
			tasks[1].wakeAt = time.Now().Add(time.Hour)

			next := s.schedule()

			if got := tasks[1].status; got != tt.want {
				t.Fatalf("outgoing status = %s, want %s", got, tt.want)
			}
			if next != tasks[2] || s.running != tasks[2] {
				t.Fatalf("schedule() = task %d, want task %d", next.id, tasks[2].id)
			}
			if tasks[2].status != StatusRun {
				t.Fatalf("selected status = %s, want RUN", tasks[2].status)
			}
		})
	}
}

func TestScheduleWrapsToRoot(t *testing.T) {
	s, tasks := newRing(t, 2)
	s.running = tasks[2]
	tasks[2].status = StatusRun

	if next := s.schedule(); next != s.root {
		t.Fatalf("schedule() from tail = task %d, want root", next.id)
	}
}

func TestScheduleCascadesKilledTasks(t *testing.T) {
	s, tasks := newRing(t, 4)
	tasks[1].status = StatusKill
	tasks[2].status = StatusKill

	next := s.schedule()

	if next != tasks[3] {
		t.Fatalf("schedule() = task %d, want task %d", next.id, tasks[3].id)
	}
	checkRing(t, s, []TaskID{1, 4, 5})
	if got := s.Stats().StackFrees; got != 2 {
		t.Fatalf("StackFrees = %d, want 2", got)
	}
}

func TestScheduleKilledOutgoingSelectsSuccessor(t *testing.T) {
	s, tasks := newRing(t, 3)
	s.running = tasks[2]
	tasks[2].status = StatusKill

	if next := s.schedule(); next != tasks[3] {
		t.Fatalf("schedule() = task %d, want task %d", next.id, tasks[3].id)
	}

	s.running = tasks[3]
	tasks[3].status = StatusKill
	if next := s.schedule(); next != s.root {
		t.Fatalf("schedule() after killed tail = task %d, want root", next.id)
	}
	checkRing(t, s, []TaskID{1, 2})
}

func TestScheduleSkipsSleepers(t *testing.T) {
	s, tasks := newRing(t, 2)
	tasks[1].status = StatusSleep
	tasks[1].wakeAt = time.Now().Add(time.Hour)

	if next := s.schedule(); next != tasks[2] {
		t.Fatalf("schedule() = task %d, want task %d", next.id, tasks[2].id)
	}

	s.running = s.root
	tasks[1].woken = true
	if next := s.schedule(); next != tasks[1] {
		t.Fatalf("schedule() after wake = task %d, want task %d", next.id, tasks[1].id)
	}
	if tasks[1].status != StatusRun || tasks[1].woken {
		t.Fatalf("woken task status=%s woken=%v, want RUN false", tasks[1].status, tasks[1].woken)
	}
}
