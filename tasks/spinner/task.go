// Package spinner is a task that never yields on its own. It only gives up
// the processor when a preemption tick lands on one of its checkpoints.
package spinner

import (
	"fmt"
	"io"

	"taskring/kernel"
)

type Task struct {
	out  io.Writer
	stop func() bool

	spins  uint64
	slices int
}

// New returns a spinner that runs until stop reports true.
func New(out io.Writer, stop func() bool) *Task {
	return &Task{out: out, stop: stop}
}

// Spins is the number of loop iterations executed.
func (t *Task) Spins() uint64 { return t.spins }

// Slices is the number of time slices the spinner ran in.
func (t *Task) Slices() int { return t.slices }

func (t *Task) Run(kt *kernel.Task, _ any) {
	t.slices = 1
	for !t.stop() {
		t.spins++
		if kt.Checkpoint() {
			t.slices++
			fmt.Fprintf(t.out, "spinner slice %d\n", t.slices)
		}
	}
	fmt.Fprintf(t.out, "spinner done\n")
}
