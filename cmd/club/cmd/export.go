package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/savings-club/pkg/beancount"
	"github.com/shunichi-ikebuchi/savings-club/pkg/converter"
	"github.com/shunichi-ikebuchi/savings-club/pkg/db"
)

const metadataLastExport = "last_export"

var (
	exportMonth   string
	exportMapping string
	exportDryRun  bool
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the transaction log to Beancount",
	Long: `Export transaction log entries to monthly Beancount files.

This command:
1. Reads the transaction log (optionally one month)
2. Skips entries already exported
3. Converts them to balanced Beancount transactions
4. Appends them to CLUB_EXPORT_DIR/YYYY/YYYY-MM.beancount
5. Records the export history in SQLite

Example:
  club export --month 2025-03
  club export --mapping config/account-mapping.yaml --dry-run`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportMonth, "month", "", "Month to export (YYYY-MM), default all")
	exportCmd.Flags().StringVar(&exportMapping, "mapping", "", "Account mapping YAML file (default built-in accounts)")
	exportCmd.Flags().BoolVar(&exportDryRun, "dry-run", false, "Dry run mode (no file writes)")
}

func runExport(cmd *cobra.Command, args []string) {
	slog.Info("Starting export", "month", exportMonth, "dry_run", exportDryRun)

	c := openClub()
	defer c.Close()

	mapper := converter.NewDefaultMapper()
	if exportMapping != "" {
		var err error
		mapper, err = converter.NewMapper(exportMapping)
		exitOnError(err, "failed to load account mapping")
	}

	cvtr := converter.NewConverter(mapper, c.cfg.Currency, c.loc)
	history := db.NewExportHistory(c.conn)
	repo := beancount.NewFileSystemRepository(c.paths)

	exporter := converter.NewExporter(c.engine, history, repo, c.paths, cvtr)
	res, err := exporter.Export(context.Background(), converter.ExportOptions{
		Month:  exportMonth,
		DryRun: exportDryRun,
		Out:    os.Stdout,
	})
	exitOnError(err, "export failed")

	if !exportDryRun && res.Exported > 0 {
		if err := history.SetMetadata(metadataLastExport, time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("Failed to record export time", "error", err)
		}
	}

	fmt.Printf("\nExported: %d, already exported: %d, not exportable: %d, failed: %d\n",
		res.Exported, res.AlreadyExported, res.Skipped, res.Failed)
	for _, f := range res.Files {
		fmt.Printf("  %s\n", f)
	}

	if res.Failed > 0 {
		os.Exit(1)
	}
}
