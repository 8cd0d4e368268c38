package cluster

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var (
	addClusterID      string
	addSticky         bool
	addLBPolicy       string
	addProtoVersion   string
	addHealthCheck    bool
	addHealthPath     string
	addHealthInterval int
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a cluster",
	Long: `Add a named cluster. Frontends route to a cluster by id, and backends
are added to it with 'sozuctl backend add'.

Examples:
  sozuctl cluster add --id web --load-balancing round-robin
  sozuctl cluster add --id api --sticky-sessions --health-check --health-path /healthz`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addClusterID, "id", "", "cluster id (required)")
	addCmd.Flags().BoolVar(&addSticky, "sticky-sessions", false, "enable sticky session cookies")
	addCmd.Flags().StringVar(&addLBPolicy, "load-balancing", "round-robin", "load balancing policy: round-robin, random, least-loaded, power-of-two")
	addCmd.Flags().StringVar(&addProtoVersion, "protocol-version", "", "backend protocol version hint, e.g. h2 or http/1.1")
	addCmd.Flags().BoolVar(&addHealthCheck, "health-check", false, "enable active backend health checks")
	addCmd.Flags().StringVar(&addHealthPath, "health-path", "", "health check path")
	addCmd.Flags().IntVar(&addHealthInterval, "health-interval", 10, "health check interval, in seconds")
	_ = addCmd.MarkFlagRequired("id")
}

func parseLBPolicy(s string) (wire.LoadBalancingPolicy, error) {
	switch s {
	case "round-robin", "":
		return wire.LoadBalancingRoundRobin, nil
	case "random":
		return wire.LoadBalancingRandom, nil
	case "least-loaded":
		return wire.LoadBalancingLeastLoaded, nil
	case "power-of-two":
		return wire.LoadBalancingPowerOfTwo, nil
	default:
		return "", fmt.Errorf("invalid load balancing policy %q", s)
	}
}

func runAdd(cmd *cobra.Command, args []string) error {
	policy, err := parseLBPolicy(addLBPolicy)
	if err != nil {
		return err
	}

	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	clusterCfg := wire.Cluster{
		ClusterID:          addClusterID,
		StickySessions:     addSticky,
		LoadBalancingPolicy: policy,
		ProtocolVersion:     addProtoVersion,
		HealthCheck: wire.HealthCheckPolicy{
			Enabled:  addHealthCheck,
			Path:     addHealthPath,
			Interval: addHealthInterval,
		},
	}

	result, err := c.Do(ctx, client.AddCluster(clusterCfg))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("cluster '%s' added", addClusterID))
	return nil
}
