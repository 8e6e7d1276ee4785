// Package logging builds the slog loggers used by the command line and the
// tick companion.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
	// FormatAuto picks text when stderr is a terminal and json otherwise.
	FormatAuto = "auto"
)

// New returns a logger writing to stderr. Stdout carries the task trace.
func New(level slog.Level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, Resolve(format, os.Stderr.Fd()))
}

// Resolve maps FormatAuto to a concrete format for the descriptor fd.
func Resolve(format string, fd uintptr) string {
	if !strings.EqualFold(format, FormatAuto) {
		return format
	}
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return FormatText
	}
	return FormatJSON
}

// NewWithWriter returns a logger writing to out. Unknown formats, auto
// included, fall back to text.
func NewWithWriter(out io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel converts debug, info, warn or error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// CheckFormat reports an error for formats New does not know.
func CheckFormat(format string) error {
	switch strings.ToLower(format) {
	case "", FormatText, FormatJSON, FormatAuto:
		return nil
	}
	return fmt.Errorf("unknown log format %q", format)
}
