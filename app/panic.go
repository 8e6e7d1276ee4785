package app

import (
	"log/slog"
	"strings"

	"taskring/kernel"
)

type panicLog struct {
	log   *slog.Logger
	next  func(kernel.PanicInfo)
	count int
}

func panicRecorder(log *slog.Logger, next func(kernel.PanicInfo)) *panicLog {
	return &panicLog{log: log, next: next}
}

// record counts a task panic and logs its stack, one record per line.
func (p *panicLog) record(info kernel.PanicInfo) {
	p.count++
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line == "" {
			continue
		}
		p.log.Debug("task panic stack", "task", info.TaskID, "line", line)
	}
	if p.next != nil {
		p.next(info)
	}
}
