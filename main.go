package main

import (
	"fmt"
	"log/slog"
	"os"

	"taskring/hal"
	"taskring/internal/cli"
	"taskring/internal/logging"
)

func main() {
	// The tick companion is this binary re-executed with a marker variable.
	if hal.RunCompanionFromEnv(logging.New(slog.LevelWarn, logging.FormatText)) {
		return
	}
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
