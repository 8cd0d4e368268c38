package frontend

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every frontend",
	RunE:  runList,
}

type frontendRow struct {
	Kind     string `json:"kind"`
	Address  string `json:"address"`
	Hostname string `json:"hostname,omitempty"`
	Path     string `json:"path,omitempty"`
	Route    string `json:"route"`
}

type frontendTable []frontendRow

func (t frontendTable) Headers() []string { return []string{"KIND", "ADDRESS", "HOSTNAME", "PATH", "ROUTE"} }

func (t frontendTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{r.Kind, r.Address, r.Hostname, r.Path, r.Route})
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

	result, err := c.Do(ctx, client.ListFrontends())
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	var rows frontendTable
	if result.Final.Content != nil && result.Final.Content.FrontendList != nil {
		list := result.Final.Content.FrontendList
		for _, f := range list.HttpFrontends {
			rows = append(rows, frontendRow{Kind: "HTTP", Address: f.Address, Hostname: f.Hostname, Path: f.Path.String(), Route: f.Route.String()})
		}
		for _, f := range list.HttpsFrontends {
			rows = append(rows, frontendRow{Kind: string(wire.ListenerHTTPS), Address: f.Address, Hostname: f.Hostname, Path: f.Path.String(), Route: f.Route.String()})
		}
		for _, f := range list.TcpFrontends {
			rows = append(rows, frontendRow{Kind: "TCP", Address: f.Address, Route: f.ClusterID})
		}
	}

	return cmdutil.PrintOutput(os.Stdout, rows, len(rows) == 0, "No frontends configured.", rows)
}
