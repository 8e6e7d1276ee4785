// Package sleeper is a demo task that naps between lines.
package sleeper

import (
	"fmt"
	"io"
	"time"

	"taskring/kernel"
)

type Task struct {
	naps int
	d    time.Duration
	out  io.Writer
}

func New(naps int, d time.Duration, out io.Writer) *Task {
	return &Task{naps: naps, d: d, out: out}
}

func (t *Task) Run(kt *kernel.Task, _ any) {
	for i := 0; i < t.naps; i++ {
		if err := kt.Sleep(t.d); err != nil {
			fmt.Fprintf(t.out, "sleeper error: %v\n", err)
			return
		}
		fmt.Fprintf(t.out, "sleeper woke %d\n", i)
	}
}
