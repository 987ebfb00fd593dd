// Package cli implements the superloop command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"superloop/internal/config"

	logx "superloop/pkg/logx"
)

var (
	flagConfig   string
	flagLogLevel string
)

// defaultConfig returns SUPERLOOP_CONFIG or ./superloop.yaml.
func defaultConfig() string {
	if s := os.Getenv("SUPERLOOP_CONFIG"); s != "" {
		return s
	}
	return "./superloop.yaml"
}

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "superloop",
		Short:        "Cooperative periodic task scheduler",
		Long:         "superloop runs a fixed set of periodic tasks off a tick source, checks each run against its slice budget, and reports overruns.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagLogLevel == "" {
				return nil
			}
			if _, err := logx.ParseLevel(flagLogLevel); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "console log level for simulate and incidents (trace|debug|info|warn|error); silent when empty")
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", defaultConfig(), "config file, YAML or JSON (or SUPERLOOP_CONFIG env)")

	root.AddCommand(
		newRunCmd(),
		newPlanCmd(),
		newSimulateCmd(),
		newIncidentsCmd(),
	)
	return root
}

// loadConfig parses and validates without committing to a watcher.
func loadConfig() (*config.Config, error) {
	return config.NewManager(flagConfig).Load()
}

// cliLogger is silent unless --log-level was given. run logs through the
// configured logging section instead.
func cliLogger() logx.Logger {
	if flagLogLevel == "" {
		return logx.Nop()
	}
	return logx.NewConsole(flagLogLevel)
}
