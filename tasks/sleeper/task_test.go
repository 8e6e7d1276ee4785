package sleeper

import (
	"bytes"
	"context"
	"testing"
	"time"

	"taskring/kernel"
)

func TestSleeperNaps(t *testing.T) {
	s := kernel.New(kernel.Config{})
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var out bytes.Buffer
	if _, err := s.Create(New(2, 5*time.Millisecond, &out).Run, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if got := time.Since(start); got < 10*time.Millisecond {
		t.Errorf("two 5ms naps finished after %s", got)
	}
	if want := "sleeper woke 0\nsleeper woke 1\n"; out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}
