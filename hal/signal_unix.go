//go:build linux || darwin

package hal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// SignalConfig controls a SignalSource.
type SignalConfig struct {
	// Interval between signals sent by the companion process.
	Interval time.Duration
	// Signal delivered to this process on every tick. Defaults to SIGUSR1.
	Signal unix.Signal
	// RunID is passed to the companion for log correlation.
	RunID  string
	Logger *slog.Logger

	// Command builds the companion process. The default re-executes the
	// current binary with the companion environment set; the binary must
	// call RunCompanionFromEnv early in main.
	Command func(c Companion) (*exec.Cmd, error)
}

// SignalSource is a kernel.TickSource fed by a companion process that
// periodically signals this process.
type SignalSource struct {
	cfg SignalConfig
	log *slog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	sigs chan os.Signal
	stop chan struct{}
	done chan struct{}
}

// NewSignalSource returns a SignalSource. Nothing is started until Start.
func NewSignalSource(cfg SignalConfig) *SignalSource {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	if cfg.Signal == 0 {
		cfg.Signal = unix.SIGUSR1
	}
	if cfg.Command == nil {
		cfg.Command = selfCommand
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SignalSource{cfg: cfg, log: log.With("component", "hal", "run", cfg.RunID)}
}

// ParseSignal converts a name such as "SIGUSR1" or "usr1" to a signal.
func ParseSignal(name string) (unix.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	sig := unix.SignalNum(n)
	if sig == 0 {
		return 0, fmt.Errorf("hal: unknown signal %q", name)
	}
	return sig, nil
}

func selfCommand(c Companion) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	cmd := exec.Command(exe)
	cmd.Env = append(os.Environ(), CompanionEnv+"="+c.encode())
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Start installs the signal handler and starts the companion process.
func (s *SignalSource) Start() (<-chan uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil, errAlreadyStarted
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, s.cfg.Signal)

	cmd, err := s.cfg.Command(Companion{
		Parent:   os.Getpid(),
		Interval: s.cfg.Interval,
		Signal:   s.cfg.Signal,
		RunID:    s.cfg.RunID,
	})
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		signal.Stop(sigs)
		return nil, fmt.Errorf("start tick companion: %w", err)
	}

	ch := make(chan uint64, 1)
	s.cmd = cmd
	s.sigs = sigs
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ch, sigs, s.stop, s.done)

	s.log.Debug("tick companion started", "pid", cmd.Process.Pid, "interval", s.cfg.Interval, "signal", unix.SignalName(s.cfg.Signal))
	return ch, nil
}

func (s *SignalSource) loop(ch chan<- uint64, sigs <-chan os.Signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(ch)

	var seq uint64
	for {
		select {
		case <-stop:
			return
		case <-sigs:
			seq++
			select {
			case ch <- seq:
			default:
			}
		}
	}
}

// Stop interrupts the companion process, waits for it and removes the
// signal handler.
func (s *SignalSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return errNotStarted
	}

	var errs []error
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		errs = append(errs, fmt.Errorf("interrupt tick companion: %w", err))
	}
	if err := s.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			errs = append(errs, fmt.Errorf("wait tick companion: %w", err))
		}
	}
	signal.Stop(s.sigs)
	close(s.stop)
	<-s.done

	s.log.Debug("tick companion stopped", "pid", s.cmd.Process.Pid)
	s.cmd = nil
	s.sigs = nil
	return errors.Join(errs...)
}
