package kernel

import "errors"

var (
	// ErrOutOfMemory is returned when a task stack cannot be allocated.
	ErrOutOfMemory = errors.New("kernel: out of memory")

	// ErrInvalidState is returned for operations made in the wrong lifecycle
	// phase or from the wrong task.
	ErrInvalidState = errors.New("kernel: invalid state")

	// ErrStackOverflow is recorded on a task whose stack guard was disturbed,
	// whose saved frame was corrupted, or which pushed past its stack bottom.
	ErrStackOverflow = errors.New("kernel: stack overflow")
)
