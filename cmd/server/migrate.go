package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Open the database, apply every pending migration and list the applied
versions. Databases written by older releases (total_price and
payment_mode columns, "NOT PAID" status) are upgraded in place.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.AppliedMigrations(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d migrations applied\n", cfg.DBPath, len(records))
	for _, r := range records {
		fmt.Fprintf(out, "  %3d  %-32s %s\n", r.Version, r.Name, r.AppliedAt.Format(time.RFC3339))
	}
	return nil
}
