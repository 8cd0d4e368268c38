package frontend

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var (
	tcpAddress string
	tcpCluster string
)

var addTCPCmd = &cobra.Command{
	Use:   "add-tcp",
	Short: "Add a TCP frontend",
	Long:  `Bind a TCP listener's address to exactly one cluster.`,
	RunE:  runAddTCP,
}

var removeTCPCmd = &cobra.Command{
	Use:   "remove-tcp",
	Short: "Remove a TCP frontend",
	RunE:  runRemoveTCP,
}

func init() {
	for _, cmd := range []*cobra.Command{addTCPCmd, removeTCPCmd} {
		cmd.Flags().StringVar(&tcpAddress, "address", "", "listener address (required)")
		_ = cmd.MarkFlagRequired("address")
	}
	addTCPCmd.Flags().StringVar(&tcpCluster, "cluster", "", "cluster id to route connections to (required)")
	_ = addTCPCmd.MarkFlagRequired("cluster")
}

func runAddTCP(cmd *cobra.Command, args []string) error {
	fe := wire.TcpFrontend{ClusterID: tcpCluster, Address: tcpAddress}

	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, client.AddTcpFrontend(fe))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("tcp frontend on '%s' routed to cluster '%s'", tcpAddress, tcpCluster))
	return nil
}

func runRemoveTCP(cmd *cobra.Command, args []string) error {
	fe := wire.TcpFrontend{ClusterID: tcpCluster, Address: tcpAddress}

	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, client.RemoveTcpFrontend(fe))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("tcp frontend removed from '%s'", tcpAddress))
	return nil
}
