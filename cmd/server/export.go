package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/billing-engine/api"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/logger"
)

var exportCmd = &cobra.Command{
	Use:       "export bills|income|expenses",
	Short:     "Write a table to a CSV file",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bills", "income", "expenses"},
	Example: `  # Bills into BILLING_EXPORT_DIR
  server export bills

  # Income into ./out
  server export income --out ./out`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("out", "", "Output directory (overrides BILLING_EXPORT_DIR)")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	kind, err := api.ParseExportKind(args[0])
	if err != nil {
		return err
	}
	dir := cfg.ExportDir
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		dir = out
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	engine := billing.NewEngine(store)
	path, err := api.ExportToDir(cmd.Context(), engine, kind, dir, time.Now())
	if err != nil {
		return err
	}

	log.Info().Str("export", string(kind)).Str("path", path).Msg("export written")
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
