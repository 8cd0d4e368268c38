// Package commands implements the sozu supervisor CLI: starting and
// stopping the process, the internal worker/main hand-off sub-commands
// re-exec'd by the supervisor itself, and configuration management.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozu/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "sozu",
	Short: "sozu - a multi-process reverse proxy supervisor",
	Long: `sozu supervises a set of worker processes that terminate HTTP, HTTPS and
raw TCP traffic, owns the authoritative configuration, and exposes a local
control socket for reconfiguring listeners, clusters, frontends and backends
without downtime.

Use "sozu [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/sozu/config.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(mainCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr through the root command.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
