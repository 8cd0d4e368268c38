package certificate

import (
	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/pkg/client"
)

var (
	removeAddress     string
	removeFingerprint string
	removeForce       bool
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a certificate from an HTTPS listener",
	RunE:  runRemove,
}

func init() {
	removeCmd.Flags().StringVar(&removeAddress, "address", "", "HTTPS listener address (required)")
	removeCmd.Flags().StringVar(&removeFingerprint, "fingerprint", "", "certificate fingerprint (required)")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "skip the confirmation prompt")
	_ = removeCmd.MarkFlagRequired("address")
	_ = removeCmd.MarkFlagRequired("fingerprint")
}

func runRemove(cmd *cobra.Command, args []string) error {
	return cmdutil.RunDeleteWithConfirmation("certificate", removeFingerprint, removeForce, func() error {
		c, err := cmdutil.GetClient()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := cmdutil.Context()
		defer cancel()

		result, err := c.Do(ctx, client.RemoveCertificate(removeAddress, removeFingerprint))
		if err != nil {
			return err
		}
		return result.Err()
	})
}
