// Package cmd provides the watchmen CLI's cobra commands: one
// subcommand per dispatcher opcode, plus process-level flags for
// generating a starter config and reporting version.
//
// Package-level command vars register themselves from an init() via
// rootCmd.AddCommand, flags bind with cobra.Command.Flags().*Var, and
// RunE handlers build a request, send it, and format the response for
// a terminal.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags; "dev" otherwise.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "watchmen",
	Short:         "watchmen is a process supervisor and task scheduler",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to watchmen.toml")
	rootCmd.AddCommand(generateCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".watchmen/watchmen.toml"
	}
	return home + "/.watchmen/watchmen.toml"
}

// Execute runs the root command, returning its exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
