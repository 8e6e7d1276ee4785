// Package hal provides the host side of the scheduler: periodic tick sources
// that drive preemption.
package hal

import (
	"errors"
	"time"

	"taskring/kernel"
)

var ErrNotImplemented = errors.New("not implemented")

var (
	errAlreadyStarted = errors.New("hal: tick source already started")
	errNotStarted     = errors.New("hal: tick source not started")
)

// DefaultTickInterval is one time unit of the companion tick process.
const DefaultTickInterval = time.Second

// Both sources implement kernel.TickSource: Stop closes the channel returned
// by Start, and a source can be started again after Stop.
var (
	_ kernel.TickSource = (*Ticker)(nil)
	_ kernel.TickSource = (*SignalSource)(nil)
)
