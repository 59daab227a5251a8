// Package cli implements the woofer command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-woofer/internal/config"
	"github.com/teslashibe/go-woofer/internal/log"
)

// Version is set at build time via ldflags.
var Version = "dev"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "woofer",
	Short: "Pose streaming between a four-legged device and its controller",
	Long: `woofer runs either side of a pose link.

The device side serves its authoritative pose as a Server-Sent Events stream
and accepts pose commands. The controller side subscribes to that stream,
drives a local kinematic model, and turns stick input into commands.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(logLevel)
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("woofer version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.LogLevel(), "log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
