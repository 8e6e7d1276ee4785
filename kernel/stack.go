package kernel

import "fmt"

const (
	// DefaultStackSize is the per-task stack region size in bytes.
	DefaultStackSize = 4096
	// DefaultGuardSize is the number of bytes at the stack bottom that must
	// keep the fill pattern.
	DefaultGuardSize = 64
	// DefaultMaxTasks bounds the number of live stacks, the supervisory
	// task included.
	DefaultMaxTasks = 64
)

// MinStackSize is the smallest stack accepted for the given guard size: the
// guard plus room for two saved frames.
func MinStackSize(guard int) int { return guard + 2*frameSize }

// stack is a task's exclusively owned stack region.
//
// It grows downward: top starts at len(mem) and every push moves it toward 0.
// The lowest guard bytes hold the fill pattern and act as the canary.
type stack struct {
	mem   []byte
	top   int
	guard int
	freed bool
}

// fill writes the recognizable pattern: byte i holds the low 8 bits of i.
func (st *stack) fill() {
	for i := range st.mem {
		st.mem[i] = byte(i)
	}
	st.top = len(st.mem)
}

// intact reports whether the guard region still carries the fill pattern.
func (st *stack) intact() bool {
	for i := 0; i < st.guard && i < len(st.mem); i++ {
		if st.mem[i] != byte(i) {
			return false
		}
	}
	return true
}

func (st *stack) used() int {
	return len(st.mem) - st.top
}

func (st *stack) push(b []byte) error {
	if st.freed {
		return fmt.Errorf("%w: stack released", ErrInvalidState)
	}
	if st.top-len(b) < 0 {
		return fmt.Errorf("%w: push of %d bytes with %d free", ErrStackOverflow, len(b), st.top)
	}
	st.top -= len(b)
	copy(st.mem[st.top:], b)
	return nil
}

func (st *stack) pop(n int) ([]byte, error) {
	if st.freed {
		return nil, fmt.Errorf("%w: stack released", ErrInvalidState)
	}
	if n < 0 || n > st.used() {
		return nil, fmt.Errorf("%w: pop of %d bytes with %d in use", ErrInvalidState, n, st.used())
	}
	out := make([]byte, n)
	copy(out, st.mem[st.top:st.top+n])
	st.top += n
	return out, nil
}

// pushFrame saves f at the current top and returns the new stack pointer.
func (st *stack) pushFrame(f frame) (int, error) {
	if st.freed {
		return 0, fmt.Errorf("%w: stack released", ErrInvalidState)
	}
	if st.top-frameSize < 0 {
		return 0, fmt.Errorf("%w: no room for saved frame", ErrStackOverflow)
	}
	st.top -= frameSize
	f.encode(st.mem[st.top : st.top+frameSize])
	return st.top, nil
}

// popFrame restores the frame saved at sp.
func (st *stack) popFrame(sp int) (frame, error) {
	if st.freed {
		return frame{}, fmt.Errorf("%w: stack released", ErrInvalidState)
	}
	if sp != st.top || sp+frameSize > len(st.mem) {
		return frame{}, fmt.Errorf("%w: saved stack pointer %d, top %d", ErrStackOverflow, sp, st.top)
	}
	f, ok := decodeFrame(st.mem[sp : sp+frameSize])
	if !ok {
		return frame{}, fmt.Errorf("%w: saved frame at %d corrupted", ErrStackOverflow, sp)
	}
	st.top += frameSize
	return f, nil
}

// stackPool hands out fixed-size stacks up to a live limit.
type stackPool struct {
	size  int
	guard int
	limit int

	live   int
	allocs uint64
	frees  uint64
}

func (p *stackPool) alloc() (*stack, error) {
	if p.limit > 0 && p.live >= p.limit {
		return nil, fmt.Errorf("%w: %d of %d stacks in use", ErrOutOfMemory, p.live, p.limit)
	}
	st := &stack{mem: make([]byte, p.size), guard: p.guard}
	st.fill()
	p.live++
	p.allocs++
	return st, nil
}

func (p *stackPool) free(st *stack) {
	if st.freed {
		panic("kernel: stack released twice")
	}
	st.freed = true
	st.mem = nil
	st.top = 0
	p.live--
	p.frees++
}
