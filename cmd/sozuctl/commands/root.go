// Package commands implements the sozuctl control-socket CLI client.
package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	backendcmd "github.com/sozu-io/sozu/cmd/sozuctl/commands/backend"
	certcmd "github.com/sozu-io/sozu/cmd/sozuctl/commands/certificate"
	clustercmd "github.com/sozu-io/sozu/cmd/sozuctl/commands/cluster"
	frontendcmd "github.com/sozu-io/sozu/cmd/sozuctl/commands/frontend"
	listenercmd "github.com/sozu-io/sozu/cmd/sozuctl/commands/listener"
	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sozuctl",
	Short: "sozuctl - control client for the sozu supervisor",
	Long: `sozuctl talks to a running sozu supervisor over its local control socket
to reconfigure listeners, clusters, frontends, backends and certificates, and
to query status and metrics, without restarting any worker.

Use "sozuctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.SocketPath, _ = cmd.Flags().GetString("socket")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
		cmdutil.Flags.Timeout, _ = cmd.Flags().GetDuration("timeout")
	},
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
	rootCmd.PersistentFlags().String("socket", "", "control socket path (default: $SOZU_SOCKET or /var/run/sozu/sozu.sock)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(upgradeMainCmd)
	rootCmd.AddCommand(upgradeWorkersCmd)
	rootCmd.AddCommand(launchWorkerCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(listenercmd.Cmd)
	rootCmd.AddCommand(clustercmd.Cmd)
	rootCmd.AddCommand(frontendcmd.Cmd)
	rootCmd.AddCommand(backendcmd.Cmd)
	rootCmd.AddCommand(certcmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
