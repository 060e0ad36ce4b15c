/*
main.go - Application entry point

PURPOSE:
  Command-line entry point for the billing engine. Subcommands:

    serve     Run the HTTP API (default)
    migrate   Apply pending schema migrations and list them
    export    Write bills, income or expenses to a CSV file

STARTUP SEQUENCE (every subcommand):
  1. Load .env and environment (config.Load)
  2. Configure zerolog (logger.Setup)
  3. Apply command-line overrides (--db)
  4. Open the SQLite store, which runs migrations

ENVIRONMENT:
  BILLING_ADDR, BILLING_DB_PATH, BILLING_ALLOWED_ORIGINS, BILLING_RATE_LIMIT,
  BILLING_INTEGRITY_INTERVAL, BILLING_EXPORT_DIR, LOG_LEVEL, LOG_FORMAT.
  See config/config.go for defaults.

EXAMPLES:
  # Run with file database
  ./server serve --db ./data/billing.db

  # Export income to ./out
  ./server export income --out ./out

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/warp/billing-engine/config"
	"github.com/warp/billing-engine/logger"
	"github.com/warp/billing-engine/store/sqlite"
)

var version = "1.0.0"

// cfg is filled by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Bill lifecycle and ledger server",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.Setup(loaded.Logging()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if db, _ := cmd.Flags().GetString("db"); db != "" {
			loaded.DBPath = db
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides BILLING_DB_PATH); \":memory:\" for in-memory")
}

// openStore opens the configured database. Migrations run as part of it.
func openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
