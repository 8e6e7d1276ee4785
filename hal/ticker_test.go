package hal

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskring/kernel"
)

func TestTickerDeliversAndCloses(t *testing.T) {
	tk := NewTicker(5 * time.Millisecond)
	ch, err := tk.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var last uint64
	for i := 0; i < 3; i++ {
		select {
		case seq := <-ch:
			if seq <= last {
				t.Fatalf("tick seq %d after %d", seq, last)
			}
			last = seq
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d never arrived", i)
		}
	}

	if err := tk.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for range ch {
	}
}

func TestTickerStartStopErrors(t *testing.T) {
	tk := NewTicker(time.Millisecond)
	if err := tk.Stop(); !errors.Is(err, errNotStarted) {
		t.Fatalf("Stop before Start = %v, want errNotStarted", err)
	}
	if _, err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := tk.Start(); !errors.Is(err, errAlreadyStarted) {
		t.Fatalf("second Start = %v, want errAlreadyStarted", err)
	}
	if err := tk.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Restart after Stop.
	if _, err := tk.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := tk.Stop(); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
}

func TestTickerRejectsZeroInterval(t *testing.T) {
	if _, err := NewTicker(0).Start(); err == nil {
		t.Fatal("Start with zero interval succeeded")
	}
}

func TestTickerPreemptsKernelTask(t *testing.T) {
	s := kernel.New(kernel.Config{Ticks: NewTicker(time.Millisecond)})
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	preempted := false
	if _, err := s.Create(func(task *kernel.Task, _ any) {
		for !task.Checkpoint() {
		}
		preempted = true
	}, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !preempted || s.Stats().Ticks == 0 {
		t.Fatalf("preempted=%v ticks=%d", preempted, s.Stats().Ticks)
	}
}
