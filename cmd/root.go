// Package cmd wires the cobra command tree for the postwatch service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postwatch",
		Short: "A service that tracks social posts and reports when they disappear.",
		Long: `postwatch lets users register post URLs they care about and get a
webhook notification as soon as a post is deleted or hidden. It exposes an
HTTP API for account and post management and runs a periodic re-validation
job in the background.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (environment variables with the POSTWATCH_ prefix override it)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
