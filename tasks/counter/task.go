// Package counter is a cooperative demo task: it prints a count and yields.
package counter

import (
	"encoding/binary"
	"fmt"
	"io"

	"taskring/kernel"
)

type Task struct {
	name   string
	rounds int
	out    io.Writer
	done   func()
}

// New returns a task printing "<name> <i>" for each of rounds iterations,
// yielding after each one. done, if set, runs after the last line.
func New(name string, rounds int, out io.Writer, done func()) *Task {
	return &Task{name: name, rounds: rounds, out: out, done: done}
}

// Run is the kernel.TaskFunc body.
func (t *Task) Run(kt *kernel.Task, _ any) {
	var slot [8]byte
	for i := 0; i < t.rounds; i++ {
		// The loop counter lives on the task stack across the yield.
		binary.LittleEndian.PutUint64(slot[:], uint64(i))
		if err := kt.Push(slot[:]); err != nil {
			return
		}
		fmt.Fprintf(t.out, "%s %d\n", t.name, i)
		if err := kt.Yield(); err != nil {
			return
		}
		b, err := kt.Pop(len(slot))
		if err != nil {
			return
		}
		if got := binary.LittleEndian.Uint64(b); got != uint64(i) {
			panic(fmt.Sprintf("%s: stack slot %d, want %d", t.name, got, i))
		}
	}
	fmt.Fprintf(t.out, "%s done\n", t.name)
	if t.done != nil {
		t.done()
	}
}
