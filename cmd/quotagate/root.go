package main

import (
	"fmt"
	"io"
	"os"

	"github.com/artpar/quotagate/bootstrap"
	"github.com/artpar/quotagate/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quotagate",
	Short: "Quota-enforcing gateway for the analysis API",
	Long: `quotagate authenticates API keys, enforces per-plan daily request
quotas, audits every authenticated request and serves analysis payloads
filtered by the caller's plan.

Quick start:
  quotagate validate          # Check configuration
  quotagate serve             # Start the gateway

Management:
  quotagate accounts          # Provision and manage accounts
  quotagate usage <account>   # Show usage statistics
  quotagate plans             # Show the plan catalogue`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "quotagate.yaml", "config file path")
}

// loadConfig loads cfgFile, falling back to QUOTAGATE_* variables.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openApp builds storage and services without the HTTP surface.
// Logs go to stderr so command output stays clean.
func openApp() (*bootstrap.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "memory" {
		fmt.Fprintln(os.Stderr, "warning: database.driver is 'memory', changes are not persisted")
	}
	cfg.Logging.Level = "warn"
	return bootstrap.Open(cfg, bootstrap.Options{LogOutput: os.Stderr, Version: version})
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
