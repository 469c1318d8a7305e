package main

import (
	"fmt"

	"github.com/artpar/quotagate/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the quotagate HTTP server.

The server will:
  - Load configuration from quotagate.yaml (or --config)
  - Or load configuration from QUOTAGATE_* environment variables
  - Open the account store, usage ledger and audit log
  - Load the analysis dataset (or connect to the analysis upstream)
  - Authenticate, meter, audit and serve gated requests

Environment variables (for Docker deployments):
  QUOTAGATE_PAYLOAD_PATH        - Analysis dataset file
  QUOTAGATE_PAYLOAD_URL         - Analysis upstream URL
  QUOTAGATE_DATABASE_DSN        - Database path (default: quotagate.db)
  QUOTAGATE_SERVER_PORT         - Server port (default: 8080)
  QUOTAGATE_ADMIN_TOKEN_HASHES  - Bcrypt hashes of admin tokens
  QUOTAGATE_LOG_LEVEL           - Log level: debug, info, warn, error

Examples:
  quotagate serve
  quotagate serve --config /etc/quotagate/config.yaml
  QUOTAGATE_PAYLOAD_PATH=analysis.json quotagate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := bootstrap.New(cfg, bootstrap.Options{Version: version})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
