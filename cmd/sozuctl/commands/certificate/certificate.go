// Package certificate implements certificate management subcommands.
package certificate

import "github.com/spf13/cobra"

// Cmd is the certificate subcommand.
var Cmd = &cobra.Command{
	Use:     "certificate",
	Aliases: []string{"cert"},
	Short:   "Manage TLS certificates",
	Long:    `Add and remove the TLS certificates HTTPS listeners present during the handshake.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(removeCmd)
}
