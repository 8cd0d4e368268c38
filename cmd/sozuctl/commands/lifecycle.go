package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/cli/prompt"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var upgradeMainCmd = &cobra.Command{
	Use:   "upgrade-main",
	Short: "Re-exec the supervisor against a new binary with zero downtime",
	RunE:  simpleRequest(client.UpgradeMain, "supervisor upgraded"),
}

var upgradeWorkersCmd = &cobra.Command{
	Use:   "upgrade-workers",
	Short: "Roll every worker to a new binary one at a time",
	RunE:  simpleRequest(client.UpgradeWorkers, "workers upgraded"),
}

var launchWorkerCmd = &cobra.Command{
	Use:   "launch-worker",
	Short: "Spawn an additional worker process",
	RunE:  simpleRequest(client.LaunchWorker, "worker launched"),
}

var shutdownForce bool

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Gracefully stop the supervisor and every worker",
	RunE:  runShutdown,
}

func init() {
	shutdownCmd.Flags().BoolVarP(&shutdownForce, "force", "f", false, "skip the type-to-confirm prompt")
}

// runShutdown requires typing "shutdown" to confirm: unlike a single
// resource removal, this stops every worker and the supervisor itself.
func runShutdown(cmd *cobra.Command, args []string) error {
	if !shutdownForce {
		confirmed, err := prompt.ConfirmDanger("This will stop the supervisor and every worker", "shutdown")
		if err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("\nAborted.")
				return nil
			}
			return err
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}
	return simpleRequest(client.Shutdown, "shutdown requested")(cmd, args)
}

// simpleRequest builds a RunE for a no-argument request whose only
// interesting outcome is success or failure.
func simpleRequest(build func() wire.Request, successMsg string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := cmdutil.Context()
		defer cancel()

		result, err := c.Do(ctx, build())
		if err != nil {
			return err
		}
		if err := result.Err(); err != nil {
			return err
		}

		cmdutil.PrintSuccess(successMsg)
		return nil
	}
}
