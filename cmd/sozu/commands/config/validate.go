package config

import (
	"fmt"

	"github.com/sozu-io/sozu/pkg/config"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the sozu configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  sozu config validate

  # Validate specific config file
  sozu config validate --config /etc/sozu/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string

	if cfg.Command.SocketPath == "" {
		warnings = append(warnings, "command socket path not configured - control socket will not bind")
	}
	if cfg.Snapshot.Path == "" {
		warnings = append(warnings, "snapshot path not configured - state will not survive a restart")
	}
	if cfg.Snapshot.S3 != nil && cfg.Snapshot.S3.Bucket == "" {
		warnings = append(warnings, "snapshot S3 mirror configured without a bucket")
	}
	if !cfg.Metrics.Enabled {
		warnings = append(warnings, "metrics collection disabled")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Command socket:  %s\n", cfg.Command.SocketPath)
	fmt.Printf("  Worker count:    %d\n", cfg.Worker.Count)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
