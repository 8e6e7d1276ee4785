package hal

import (
	"fmt"
	"sync"
	"time"
)

// Ticker is an in-process kernel.TickSource backed by time.Ticker.
//
// Ticks are dropped while the consumer is behind, so a slow scheduler sees at
// most one pending tick.
type Ticker struct {
	d time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTicker returns a tick source firing every d.
func NewTicker(d time.Duration) *Ticker {
	return &Ticker{d: d}
}

// Start implements kernel.TickSource.
func (t *Ticker) Start() (<-chan uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil, errAlreadyStarted
	}
	if t.d <= 0 {
		return nil, fmt.Errorf("hal: invalid tick interval %s", t.d)
	}

	ch := make(chan uint64, 1)
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(ch, t.stop, t.done)
	return ch, nil
}

func (t *Ticker) loop(ch chan<- uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(ch)

	tk := time.NewTicker(t.d)
	defer tk.Stop()

	var seq uint64
	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			seq++
			select {
			case ch <- seq:
			default:
			}
		}
	}
}

// Stop implements kernel.TickSource.
func (t *Ticker) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return errNotStarted
	}
	close(t.stop)
	<-t.done
	t.stop = nil
	t.done = nil
	return nil
}
