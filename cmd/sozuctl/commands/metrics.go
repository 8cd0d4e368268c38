package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/cli/output"
	"github.com/sozu-io/sozu/pkg/client"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Fetch aggregated supervisor and worker metrics",
	RunE:  runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, client.QueryMetrics())
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	var metrics any
	if result.Final.Content != nil {
		metrics = result.Final.Content.Metrics
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, metrics)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, metrics)
	default:
		fmt.Printf("%+v\n", metrics)
		return nil
	}
}
