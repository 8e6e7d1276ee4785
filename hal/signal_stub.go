//go:build !linux && !darwin

package hal

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

const CompanionEnv = "TASKRING_TICK_COMPANION"

type Companion struct {
	Parent   int
	Interval time.Duration
	Signal   os.Signal
	RunID    string
}

type SignalConfig struct {
	Interval time.Duration
	Signal   os.Signal
	RunID    string
	Logger   *slog.Logger
	Command  func(c Companion) (*exec.Cmd, error)
}

// SignalSource is unavailable on this platform; Start always fails.
type SignalSource struct{}

func NewSignalSource(SignalConfig) *SignalSource { return &SignalSource{} }

func (*SignalSource) Start() (<-chan uint64, error) { return nil, ErrNotImplemented }

func (*SignalSource) Stop() error { return errNotStarted }

func ParseSignal(string) (os.Signal, error) { return nil, ErrNotImplemented }

func RunCompanionFromEnv(*slog.Logger) bool { return false }

func RunCompanion(context.Context, Companion) error { return ErrNotImplemented }
