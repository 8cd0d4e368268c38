package frontend

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/cmd/sozuctl/cmdutil"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/pkg/client"
)

var (
	httpAddress  string
	httpHostname string
	httpPath     string
	httpPathKind string
	httpMethod   string
	httpCluster  string
	httpDeny     bool
)

var addHTTPCmd = &cobra.Command{
	Use:   "add-http",
	Short: "Add an HTTP frontend",
	Long: `Route inbound HTTP traffic matching a hostname and path to a cluster.

Examples:
  sozuctl frontend add-http --address 0.0.0.0:80 --hostname example.com --cluster web
  sozuctl frontend add-http --address 0.0.0.0:80 --hostname example.com --path-kind prefix --path /api --cluster api`,
	RunE: runAddHTTP,
}

var removeHTTPCmd = &cobra.Command{
	Use:   "remove-http",
	Short: "Remove an HTTP frontend",
	RunE:  runRemoveHTTP,
}

func init() {
	for _, cmd := range []*cobra.Command{addHTTPCmd, removeHTTPCmd} {
		cmd.Flags().StringVar(&httpAddress, "address", "", "listener address (required)")
		cmd.Flags().StringVar(&httpHostname, "hostname", "", "SNI/Host header to match")
		cmd.Flags().StringVar(&httpPath, "path", "", "path pattern to match")
		cmd.Flags().StringVar(&httpPathKind, "path-kind", "prefix", "path match kind: prefix, regex or equals")
		cmd.Flags().StringVar(&httpMethod, "method", "", "HTTP method to match (empty matches any)")
		_ = cmd.MarkFlagRequired("address")
	}
	addHTTPCmd.Flags().StringVar(&httpCluster, "cluster", "", "cluster id to route matching requests to")
	addHTTPCmd.Flags().BoolVar(&httpDeny, "deny", false, "deny matching requests instead of routing them")
}

func buildPathRule() (wire.PathRule, error) {
	switch httpPathKind {
	case "prefix", "":
		return wire.PrefixRule(httpPath), nil
	case "regex":
		return wire.RegexRule(httpPath), nil
	case "equals":
		return wire.EqualsRule(httpPath), nil
	default:
		return wire.PathRule{}, fmt.Errorf("invalid path kind %q (must be prefix, regex or equals)", httpPathKind)
	}
}

func buildHTTPFrontend() (wire.HttpFrontend, error) {
	path, err := buildPathRule()
	if err != nil {
		return wire.HttpFrontend{}, err
	}

	var method *string
	if httpMethod != "" {
		method = &httpMethod
	}

	route := wire.ClusterRoute(httpCluster)
	if httpDeny {
		route = wire.DenyRoute()
	}

	return wire.HttpFrontend{
		Route:    route,
		Address:  httpAddress,
		Hostname: httpHostname,
		Path:     path,
		Method:   method,
	}, nil
}

func runAddHTTP(cmd *cobra.Command, args []string) error {
	if !httpDeny && httpCluster == "" {
		return fmt.Errorf("--cluster is required unless --deny is set")
	}

	fe, err := buildHTTPFrontend()
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

	result, err := c.Do(ctx, client.AddHttpFrontend(fe))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("http frontend added on '%s' for host '%s'", httpAddress, httpHostname))
	return nil
}

func runRemoveHTTP(cmd *cobra.Command, args []string) error {
	fe, err := buildHTTPFrontend()
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

	result, err := c.Do(ctx, client.RemoveHttpFrontend(fe))
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	cmdutil.PrintSuccess(fmt.Sprintf("http frontend removed from '%s' for host '%s'", httpAddress, httpHostname))
	return nil
}
