// Package cluster implements cluster management subcommands.
package cluster

import "github.com/spf13/cobra"

// Cmd is the cluster subcommand.
var Cmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage clusters",
	Long:  `Add, remove and list the backend clusters workers route traffic to.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(listCmd)
}
