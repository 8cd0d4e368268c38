// Package listener implements listener management subcommands.
package listener

import "github.com/spf13/cobra"

// Cmd is the listener subcommand.
var Cmd = &cobra.Command{
	Use:   "listener",
	Short: "Manage listeners",
	Long: `Add, remove, activate, deactivate and list the supervisor's HTTP,
HTTPS and TCP listeners.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(activateCmd)
	Cmd.AddCommand(deactivateCmd)
	Cmd.AddCommand(listCmd)
}
