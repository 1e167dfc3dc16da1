// Package main is the entry point for the liveboard CLI.
//
// Liveboard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	liveboard serve -c config.yaml          # Start the board
//	liveboard validate -c config.yaml       # Validate configuration
//	liveboard history prune -c config.yaml  # Drop expired history
//	liveboard version                       # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "liveboard",
	Short: "A live dashboard of cached upstream panels",
	Long: `Liveboard keeps a set of dashboard panels fresh.

Each panel polls an upstream on its own interval, caches the payload with
a TTL, and notifies subscribers (SSE clients, NATS) when fresh data lands.
Failed refreshes fall back to the last cached payload, then to a
placeholder marked with the error.

Quick start:
  1. Create a config file (liveboard.yaml)
  2. Run: liveboard serve -c liveboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  refresh_interval: 5m
  panels:
    - name: weather
      url: https://api.example.com/weather
      transform: json:current`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this liveboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("liveboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
