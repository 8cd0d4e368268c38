// Package cmdutil provides shared utilities for sozuctl commands.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sozu-io/sozu/internal/cli/output"
	"github.com/sozu-io/sozu/internal/cli/prompt"
	"github.com/sozu-io/sozu/pkg/client"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	SocketPath string
	Output     string
	NoColor    bool
	Verbose    bool
	Timeout    time.Duration
}

// GetClient dials the control socket named by --socket (or its default).
func GetClient() (*client.Client, error) {
	socketPath := Flags.SocketPath
	if socketPath == "" {
		socketPath = DefaultSocketPath()
	}
	return client.Dial(client.Config{SocketPath: socketPath, DialTimeout: Flags.Timeout})
}

// DefaultSocketPath mirrors pkg/config's default command socket location.
func DefaultSocketPath() string {
	if env := os.Getenv("SOZU_SOCKET"); env != "" {
		return env
	}
	return "/var/run/sozu/sozu.sock"
}

// Context returns a context bounded by --timeout, for a single request.
func Context() (context.Context, context.CancelFunc) {
	timeout := Flags.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// PrintOutput prints data in the specified format (JSON, YAML, or table).
// For table format, it displays emptyMsg if data is empty, otherwise uses the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// RunDeleteWithConfirmation prompts for confirmation (unless force is true) and runs deleteFn.
func RunDeleteWithConfirmation(resourceType, name string, force bool, deleteFn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove %s '%s'?", resourceType, name), force)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted.")
			return nil
		}
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := deleteFn(); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s '%s' removed", resourceType, name))
	return nil
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	printer := output.NewPrinter(os.Stdout, format, !IsColorDisabled())
	printer.Success(msg)
}
