package backend

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/pkg/client"
)

var (
	removeClusterID string
	removeBackendID string
	removeForce     bool
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a backend from a cluster",
	RunE:  runRemove,
}

func init() {
	removeCmd.Flags().StringVar(&removeClusterID, "cluster", "", "cluster id (required)")
	removeCmd.Flags().StringVar(&removeBackendID, "id", "", "backend id (required)")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "skip the confirmation prompt")
	_ = removeCmd.MarkFlagRequired("cluster")
	_ = removeCmd.MarkFlagRequired("id")
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := fmt.Sprintf("%s/%s", removeClusterID, removeBackendID)

	return cmdutil.RunDeleteWithConfirmation("backend", name, removeForce, func() error {
		c, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := cmdutil.Context()
		defer cancel()

		result, err := c.Do(ctx, client.RemoveBackend(removeClusterID, removeBackendID))
		if err != nil {
			return err
		}
		return result.Err()
	})
}
