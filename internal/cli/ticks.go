package cli

import (
	"fmt"
	"log/slog"

	"taskring/hal"
	"taskring/internal/config"
	"taskring/kernel"
)

// newTickSource builds the preemption source named by tc. The none source
// yields a nil TickSource, which disables preemption.
func newTickSource(tc config.TickConfig, runID string, log *slog.Logger) (kernel.TickSource, error) {
	switch tc.Source {
	case config.TickSignal:
		sig, err := hal.ParseSignal(tc.Signal)
		if err != nil {
			return nil, err
		}
		return hal.NewSignalSource(hal.SignalConfig{
			Interval: tc.Interval,
			Signal:   sig,
			RunID:    runID,
			Logger:   log,
		}), nil
	case config.TickTicker:
		return hal.NewTicker(tc.Interval), nil
	case config.TickNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown tick source %q", tc.Source)
}
