package certificate

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var (
	addAddress     string
	addFingerprint string
	addDomains     string
	addChainPath   string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a certificate to an HTTPS listener",
	Long: `Add a PEM-encoded certificate chain to the HTTPS listener at --address,
presented for SNI matches against --domains.

Examples:
  sozuctl certificate add --address 0.0.0.0:443 --domains example.com,www.example.com \
    --chain-file /etc/sozu/certs/example.com.pem --fingerprint <sha256-hex>`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addAddress, "address", "", "HTTPS listener address (required)")
	addCmd.Flags().StringVar(&addFingerprint, "fingerprint", "", "certificate fingerprint, used to identify it for removal (required)")
	addCmd.Flags().StringVar(&addDomains, "domains", "", "comma-separated SNI domain names (required)")
	addCmd.Flags().StringVar(&addChainPath, "chain-file", "", "path to a PEM-encoded certificate chain (required)")
	_ = addCmd.MarkFlagRequired("address")
	_ = addCmd.MarkFlagRequired("fingerprint")
	_ = addCmd.MarkFlagRequired("domains")
	_ = addCmd.MarkFlagRequired("chain-file")
}

func runAdd(cmd *cobra.Command, args []string) error {
	pemChain, err := os.ReadFile(addChainPath)
	if err != nil {
		return fmt.Errorf("read certificate chain: %w", err)
	}

	var domains []string
	for _, d := range strings.Split(addDomains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}

	cert := wire.Certificate{
		Address:     addAddress,
		Fingerprint: addFingerprint,
		DomainNames: domains,
		PEMChain:    string(pemChain),
	}

	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, client.AddCertificate(cert))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("certificate added to '%s'", addAddress))
	return nil
}
