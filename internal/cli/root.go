// Package cli implements the taskring command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"taskring/internal/config"
	"taskring/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "taskring",
		Short: "Green-thread scheduler demo",
		Long: `taskring runs tasks on a user-space round-robin scheduler. Tasks switch
cooperatively, and a companion process sending SIGUSR1 drives preemption of
tasks that never yield.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json, auto)")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newRunCmd(opts), newVersionCmd())
	return root
}

// load reads the config file and applies the persistent flags over it.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if o.debug {
		cfg.Log.Level = "debug"
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	if err := logging.CheckFormat(cfg.Log.Format); err != nil {
		return fmt.Errorf("--log-format: %w", err)
	}
	w := cmd.ErrOrStderr()
	format := cfg.Log.Format
	if f, ok := w.(*os.File); ok {
		format = logging.Resolve(format, f.Fd())
	}
	o.cfg = cfg
	o.logger = logging.NewWithWriter(w, level, format)
	return nil
}
