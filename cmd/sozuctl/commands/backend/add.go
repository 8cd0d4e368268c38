package backend

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var (
	addClusterID string
	addBackendID string
	addAddress   string
	addWeight    int
	addBackup    bool
	addStickyID  string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a backend to a cluster",
	Long: `Add an upstream endpoint to a cluster.

Examples:
  sozuctl backend add --cluster web --id web-1 --address 10.0.0.1:8080
  sozuctl backend add --cluster web --id web-2 --address 10.0.0.2:8080 --weight 2 --backup`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addClusterID, "cluster", "", "cluster id (required)")
	addCmd.Flags().StringVar(&addBackendID, "id", "", "backend id, unique within the cluster (required)")
	addCmd.Flags().StringVar(&addAddress, "address", "", "backend address, host:port (required)")
	addCmd.Flags().IntVar(&addWeight, "weight", 0, "load balancing weight (0 uses the worker's default)")
	addCmd.Flags().BoolVar(&addBackup, "backup", false, "only route to this backend when no primary backend is available")
	addCmd.Flags().StringVar(&addStickyID, "sticky-id", "", "sticky session id this backend answers to")
	_ = addCmd.MarkFlagRequired("cluster")
	_ = addCmd.MarkFlagRequired("id")
	_ = addCmd.MarkFlagRequired("address")
}

func runAdd(cmd *cobra.Command, args []string) error {
	backend := wire.Backend{
		ClusterID: addClusterID,
		BackendID: addBackendID,
		Address:   addAddress,
	}
	if addWeight > 0 {
		backend.LoadBalancingParameters = &wire.LoadBalancingParams{Weight: addWeight}
	}
	if addBackup {
		backup := true
		backend.Backup = &backup
	}
	if addStickyID != "" {
		backend.StickyID = &addStickyID
	}

	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, client.AddBackend(backend))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("backend '%s' added to cluster '%s'", addBackendID, addClusterID))
	return nil
}
