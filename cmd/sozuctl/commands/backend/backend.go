// Package backend implements backend management subcommands.
package backend

import "github.com/spf13/cobra"

// Cmd is the backend subcommand.
var Cmd = &cobra.Command{
	Use:   "backend",
	Short: "Manage backends",
	Long:  `Add and remove the upstream endpoints that make up a cluster.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(removeCmd)
}
