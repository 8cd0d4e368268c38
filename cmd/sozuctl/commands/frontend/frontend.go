// Package frontend implements frontend management subcommands.
package frontend

import "github.com/spf13/cobra"

// Cmd is the frontend subcommand.
var Cmd = &cobra.Command{
	Use:   "frontend",
	Short: "Manage frontends",
	Long:  `Add, remove and list the HTTP and TCP frontends that route traffic to a cluster.`,
}

func init() {
	Cmd.AddCommand(addHTTPCmd)
	Cmd.AddCommand(removeHTTPCmd)
	Cmd.AddCommand(addTCPCmd)
	Cmd.AddCommand(removeTCPCmd)
	Cmd.AddCommand(listCmd)
}
