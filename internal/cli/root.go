// Package cli implements the devsync command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/config"
	"github.com/yourorg/hubsync/internal/logging"
)

// RootOptions holds global state shared by subcommands.
type RootOptions struct {
	Format   string // "json" | "text"
	LogLevel string

	// Config and Log are set by the root PersistentPreRunE.
	Config config.Config
	Log    *zap.Logger

	// loadConfig is overridden in tests.
	loadConfig func() (config.Config, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the devsync root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{loadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devsync",
		Short: "Copy device identities between registries",
		Long: `devsync exports every device identity from a source registry into a
blob container and imports the same artifact into a destination registry.

Connection strings and defaults come from HUBSYNC_* environment variables;
flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitCommandError, "invalid flags",
					fmt.Errorf("format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.LogLevel
			}
			opts.Config = cfg
			if opts.Log == nil {
				opts.Log = logging.New(cfg.LogLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error), overrides LOG_LEVEL")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newSubmitCommand(opts))
	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
