//go:build linux || darwin

package hal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// CompanionEnv marks a process as a tick companion. Its value encodes the
// Companion parameters.
const CompanionEnv = "TASKRING_TICK_COMPANION"

// Companion describes the periodic signal sender.
type Companion struct {
	Parent   int
	Interval time.Duration
	Signal   unix.Signal
	RunID    string
}

func (c Companion) encode() string {
	return fmt.Sprintf("%d,%s,%d,%s", c.Parent, c.Interval, int(c.Signal), c.RunID)
}

func parseCompanion(v string) (Companion, error) {
	parts := strings.SplitN(v, ",", 4)
	if len(parts) != 4 {
		return Companion{}, fmt.Errorf("hal: malformed %s %q", CompanionEnv, v)
	}
	parent, err := strconv.Atoi(parts[0])
	if err != nil {
		return Companion{}, fmt.Errorf("hal: companion parent: %w", err)
	}
	interval, err := time.ParseDuration(parts[1])
	if err != nil {
		return Companion{}, fmt.Errorf("hal: companion interval: %w", err)
	}
	signo, err := strconv.Atoi(parts[2])
	if err != nil {
		return Companion{}, fmt.Errorf("hal: companion signal: %w", err)
	}
	if parent <= 0 {
		parent = unix.Getppid()
	}
	return Companion{Parent: parent, Interval: interval, Signal: unix.Signal(signo), RunID: parts[3]}, nil
}

// RunCompanionFromEnv runs the tick companion when CompanionEnv is set and
// reports whether it did. The companion runs until interrupted or until its
// parent is gone.
func RunCompanionFromEnv(log *slog.Logger) bool {
	v, ok := os.LookupEnv(CompanionEnv)
	if !ok {
		return false
	}
	c, err := parseCompanion(v)
	if err != nil {
		log.Error("tick companion", "err", err)
		return true
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := RunCompanion(ctx, c); err != nil {
		log.Error("tick companion", "run", c.RunID, "err", err)
	}
	return true
}

// RunCompanion sends c.Signal to c.Parent once per c.Interval until ctx is
// done or the parent no longer exists.
func RunCompanion(ctx context.Context, c Companion) error {
	if c.Interval <= 0 {
		return fmt.Errorf("hal: invalid companion interval %s", c.Interval)
	}
	t := time.NewTicker(c.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := unix.Kill(c.Parent, c.Signal); err != nil {
				if errors.Is(err, unix.ESRCH) {
					return nil
				}
				return fmt.Errorf("signal parent %d: %w", c.Parent, err)
			}
		}
	}
}
