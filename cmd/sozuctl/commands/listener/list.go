package listener

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
	Short: "List every declared listener",
	RunE:  runList,
}

type listenerRow struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

type listenerTable []listenerRow

func (l listenerTable) Headers() []string { return []string{"KIND", "ADDRESS", "ACTIVE"} }

func (l listenerTable) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{r.Kind, r.Address, fmt.Sprintf("%t", r.Active)})
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

	result, err := c.Do(ctx, client.ListListeners())
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	var rows listenerTable
	if result.Final.Content != nil && result.Final.Content.ListenersList != nil {
		list := result.Final.Content.ListenersList
		for addr, entry := range list.HttpListeners {
			rows = append(rows, listenerRow{Kind: string(wire.ListenerHTTP), Address: addr, Active: entry.Active})
		}
		for addr, entry := range list.HttpsListeners {
			rows = append(rows, listenerRow{Kind: string(wire.ListenerHTTPS), Address: addr, Active: entry.Active})
		}
		for addr, entry := range list.TcpListeners {
			rows = append(rows, listenerRow{Kind: string(wire.ListenerTCP), Address: addr, Active: entry.Active})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Address < rows[j].Address })

	return cmdutil.PrintOutput(os.Stdout, rows, len(rows) == 0, "No listeners configured.", rows)
}
