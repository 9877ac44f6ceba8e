package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"lattice-go/internal/logging"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "lattice",
		Short:         "Assemble lattice two-point correlators from perambulators and elementals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides the run file)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json (overrides the run file)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newInspectCmd())
	root.AddCommand(newSynthCmd(opts))
	return root
}

// logger builds the command logger; flag values win over fallbacks.
func (o *rootOptions) logger(cmd *cobra.Command, level, format string) (*slog.Logger, error) {
	if o.logLevel != "" {
		level = o.logLevel
	}
	if o.logFormat != "" {
		format = o.logFormat
	}
	return logging.New(logging.Config{Level: level, Format: format, Writer: cmd.ErrOrStderr()})
}
