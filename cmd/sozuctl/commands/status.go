package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the run state of every worker",
	RunE:  runStatus,
}

// WorkerList renders a status response as a table.
type WorkerList []wire.WorkerInfo

func (w WorkerList) Headers() []string { return []string{"ID", "PID", "STATE"} }

func (w WorkerList) Rows() [][]string {
	rows := make([][]string, 0, len(w))
	for _, info := range w {
		rows = append(rows, []string{fmt.Sprintf("%d", info.ID), fmt.Sprintf("%d", info.PID), string(info.RunState)})
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, client.Status())
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	var workers []wire.WorkerInfo
	if result.Final.Content != nil {
		workers = result.Final.Content.Status
	}
	return cmdutil.PrintOutput(os.Stdout, workers, len(workers) == 0, "No workers running.", WorkerList(workers))
}
