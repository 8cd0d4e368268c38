package listener

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var activateCmd = &cobra.Command{
	Use:   "activate <address>",
	Short: "Bind a declared but inactive listener",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivate,
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <address>",
	Short: "Close a listener's socket without removing its configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeactivate,
}

func runActivate(cmd *cobra.Command, args []string) error {
	return doToggle(args[0], client.ActivateListener, "activated")
}

func runDeactivate(cmd *cobra.Command, args []string) error {
	return doToggle(args[0], client.DeactivateListener, "deactivated")
}

func doToggle(address string, build func(string) wire.Request, verb string) error {
	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, build(address))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("listener '%s' %s", address, verb))
	return nil
}
