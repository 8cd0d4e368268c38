package cluster

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every cluster in the supervisor's configuration state",
	RunE:  runList,
}

type clusterRow struct {
	ID       string `json:"id"`
	LB       string `json:"load_balancing_policy"`
	Sticky   bool   `json:"sticky_sessions"`
	Backends int    `json:"backends"`
}

type clusterTable []clusterRow

func (t clusterTable) Headers() []string { return []string{"ID", "LOAD BALANCING", "STICKY", "BACKENDS"} }

func (t clusterTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{r.ID, r.LB, fmt.Sprintf("%t", r.Sticky), fmt.Sprintf("%d", r.Backends)})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, client.QueryClusters())
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	seen := make(map[string]wire.QueryAnswerCluster)
	if result.Final.Content != nil {
		for _, answer := range result.Final.Content.Query {
			for _, cl := range answer.Clusters {
				if cl.Configuration == nil {
					continue
				}
				if _, ok := seen[cl.Configuration.ClusterID]; !ok {
					seen[cl.Configuration.ClusterID] = cl
				}
			}
		}
	}

	var rows clusterTable
	for id, cl := range seen {
		rows = append(rows, clusterRow{
			ID:       id,
			LB:       string(cl.Configuration.LoadBalancingPolicy),
			Sticky:   cl.Configuration.StickySessions,
			Backends: len(cl.Backends),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	return cmdutil.PrintOutput(os.Stdout, rows, len(rows) == 0, "No clusters configured.", rows)
}
