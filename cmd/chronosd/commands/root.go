// Package commands implements chronosd's CLI using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chronosd",
		Short: "Chronos - a durable, single-leader task scheduler",
		Long: `Chronos schedules and runs cron, interval, one-shot, event, and
dependency-triggered tasks against a shared store, with leader election so
exactly one instance in a fleet executes each firing.

Examples:
  chronosd serve
  chronosd schedule list
  chronosd schedule add --name backup --cron "0 3 * * *" --type shell`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newScheduleCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the chronos config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
