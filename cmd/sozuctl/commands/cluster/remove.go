package cluster

import (
	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/pkg/client"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove <cluster-id>",
	Short: "Remove a cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "skip the confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	clusterID := args[0]

	return cmdutil.RunDeleteWithConfirmation("cluster", clusterID, removeForce, func() error {
		c, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := cmdutil.Context()
		defer cancel()

		result, err := c.Do(ctx, client.RemoveCluster(clusterID))
		if err != nil {
			return err
		}
		return result.Err()
	})
}
