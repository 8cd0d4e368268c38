package listener

import (
	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/pkg/client"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Remove a listener",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "skip the confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	address := args[0]

	return cmdutil.RunDeleteWithConfirmation("listener", address, removeForce, func() error {
		c, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := cmdutil.Context()
		defer cancel()

		result, err := c.Do(ctx, client.RemoveListener(address))
		if err != nil {
			return err
		}
		return result.Err()
	})
}
