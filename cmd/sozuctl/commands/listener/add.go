package listener

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var (
	addKind        string
	addAddress     string
	addPublicAddr  string
	addExpectProxy bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a listener",
	Long: `Add an HTTP, HTTPS or TCP listener at the given address.

Examples:
  sozuctl listener add --kind http --address 0.0.0.0:80
  sozuctl listener add --kind tcp --address 0.0.0.0:4040`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addKind, "kind", "", "listener kind: http, https or tcp (required)")
	addCmd.Flags().StringVar(&addAddress, "address", "", "bind address, e.g. 0.0.0.0:80 (required)")
	addCmd.Flags().StringVar(&addPublicAddr, "public-address", "", "public-facing address if different from the bind address")
	addCmd.Flags().BoolVar(&addExpectProxy, "expect-proxy", false, "expect a PROXY protocol header on new connections")
	_ = addCmd.MarkFlagRequired("kind")
	_ = addCmd.MarkFlagRequired("address")
}

func runAdd(cmd *cobra.Command, args []string) error {
	spec, err := buildSpec()
	if err != nil {
		return err
	}

	c, err := cmdutil.GetClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := c.Do(ctx, client.AddListener(spec))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("listener '%s' added", addAddress))
	return nil
}

func buildSpec() (wire.ListenerSpec, error) {
	var publicAddr *string
	if addPublicAddr != "" {
		publicAddr = &addPublicAddr
	}

	switch addKind {
	case "http":
		cfg := wire.DefaultHttpListenerConfig(addAddress)
		cfg.PublicAddress = publicAddr
		cfg.ExpectProxy = addExpectProxy
		return wire.ListenerSpec{Kind: wire.ListenerHTTP, HTTP: &cfg}, nil
	case "https":
		cfg := wire.DefaultHttpsListenerConfig(addAddress)
		cfg.PublicAddress = publicAddr
		cfg.ExpectProxy = addExpectProxy
		return wire.ListenerSpec{Kind: wire.ListenerHTTPS, HTTPS: &cfg}, nil
	case "tcp":
		return wire.ListenerSpec{Kind: wire.ListenerTCP, TCP: &wire.TcpListenerConfig{
			Address:     addAddress,
			PublicAddr:  publicAddr,
			ExpectProxy: addExpectProxy,
		}}, nil
	default:
		return wire.ListenerSpec{}, fmt.Errorf("invalid listener kind %q (must be http, https or tcp)", addKind)
	}
}
