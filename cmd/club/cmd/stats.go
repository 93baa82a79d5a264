package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/savings-club/pkg/db"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display ledger and export statistics",
	Long: `Display statistics about the ledger and the Beancount export.

Shows:
- Total number of members
- Number of open borrowings
- Transaction log entries and how many were exported
- Last export timestamp

Example:
  club stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	c := loadClub()
	defer c.Close()

	history := db.NewExportHistory(c.conn)

	stats, err := history.GetStats()
	exitOnError(err, "failed to get statistics")

	lastExport, err := history.GetMetadata(metadataLastExport)
	exitOnError(err, "failed to get last export time")

	// Display statistics
	fmt.Println("\n=== Club Statistics ===")
	fmt.Printf("Members:               %d\n", stats.TotalMembers)
	fmt.Printf("Open borrowings:       %d\n", stats.OpenBorrowings)
	fmt.Printf("Log entries:           %d\n", stats.LogEntries)
	fmt.Printf("Exported entries:      %d\n", stats.ExportedEntries)

	if lastExport != "" {
		fmt.Printf("Last export:           %s\n", lastExport)
	} else if stats.LastExport.Valid {
		fmt.Printf("Last export:           %s\n", stats.LastExport.String)
	} else {
		fmt.Printf("Last export:           (never)\n")
	}

	fmt.Println()

	slog.Debug("Statistics displayed successfully")
}
