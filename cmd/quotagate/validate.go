package main

import (
	"context"
	"fmt"
	"time"

	qredis "github.com/artpar/quotagate/adapters/redis"
	"github.com/artpar/quotagate/adapters/sqlite"
	"github.com/artpar/quotagate/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the quotagate configuration.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Plans build a valid registry
  - Database is writable (optional)
  - Redis ledger is reachable (optional)

Examples:
  quotagate validate
  quotagate validate --config /etc/quotagate/config.yaml --check-database`,
	RunE: runValidate,
}

var (
	validateCheckDatabase bool
	validateCheckLedger   bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
	validateCmd.Flags().BoolVar(&validateCheckLedger, "check-ledger", false, "check if the redis ledger is reachable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	w := out(cmd)
	fmt.Fprintf(w, "Validating %s...\n\n", cfgFile)

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(w, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(w, "  %s Config valid\n", checkMark)

	plans, err := cfg.PlanRegistry()
	if err != nil {
		fmt.Fprintf(w, "  %s Plans valid\n", crossMark)
		return err
	}

	// Show config summary
	fmt.Fprintf(w, "  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)
	fmt.Fprintf(w, "  %s Ledger: %s\n", checkMark, cfg.Ledger.Driver)
	fmt.Fprintf(w, "  %s Payload: %s\n", checkMark, payloadSource(cfg))
	fmt.Fprintf(w, "  %s Plans configured: %d (default: %s)\n", checkMark, len(plans.List()), plans.Default().ID)
	fmt.Fprintf(w, "  %s Admin tokens: %d\n", checkMark, len(cfg.Admin.TokenHashes))

	if validateCheckDatabase && cfg.Database.Driver == "sqlite" {
		if err := checkDatabaseWritable(cfg.Database.DSN); err != nil {
			fmt.Fprintf(w, "  %s Database writable\n", crossMark)
			fmt.Fprintf(w, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(w, "  %s Database writable\n", checkMark)
		}
	}

	if validateCheckLedger && cfg.Ledger.Driver == "redis" {
		if err := checkRedisReachable(cfg.Ledger.RedisURL); err != nil {
			fmt.Fprintf(w, "  %s Redis reachable\n", crossMark)
			fmt.Fprintf(w, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(w, "  %s Redis reachable\n", checkMark)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration is valid.")
	return nil
}

func payloadSource(cfg *config.Config) string {
	if cfg.Payload.Mode == "upstream" {
		return "upstream " + cfg.Payload.URL
	}
	return "file " + cfg.Payload.Path
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate()
}

func checkRedisReachable(url string) error {
	l, err := qredis.NewLedgerFromURL(url, 0)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.Ping(ctx)
}
