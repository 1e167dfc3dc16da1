package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/liveboard/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a liveboard configuration file without starting the server.

This command parses the YAML, expands environment variables, validates
all fields and builds every panel. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  liveboard validate -c config.yaml
  liveboard validate --config /etc/liveboard/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	panels, err := config.BuildPanels(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	persisted := 0
	for _, p := range panels {
		if p.Persist() {
			persisted++
		}
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:             %d\n", cfg.Port)
	fmt.Printf("  Refresh interval: %s\n", cfg.RefreshInterval.Duration())
	fmt.Printf("  Panels:           %d (%d persisted)\n", len(panels), persisted)
	fmt.Printf("  Storage:          %s\n", cfg.Storage.Driver)
	if cfg.Relay.NATSURL != "" {
		fmt.Printf("  Relay:            %s\n", cfg.Relay.NATSURL)
	}

	return nil
}
