package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the turns admin CLI. Subcommands (bootstrap,
// thresholds, auth) are attached here.
var rootCmd = &cobra.Command{
	Use:           "turns",
	Short:         "Turns management admin CLI",
	Long:          "Administrative utilities for the turns management service (schema bootstrap, threshold management, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
