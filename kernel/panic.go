package kernel

import "runtime/debug"

// PanicInfo contains details about a panic recovered from a task body.
type PanicInfo struct {
	TaskID TaskID
	Value  any
	// Stack is the Go stack of the task's execution context at the panic.
	Stack []byte
}

func captureStack() []byte {
	return debug.Stack()
}
