package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var resetConfirm bool

// resetCmd represents the reset command.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all ledger activity",
	Long: `Clear the transaction log, borrowings, payments and daily summaries,
and zero every balance. Members are kept. Requires the admin credential and
--yes.

Example:
  club reset --yes --credential secret`,
	Args: cobra.NoArgs,
	Run:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm the reset")
}

func runReset(cmd *cobra.Command, args []string) {
	if !resetConfirm {
		exitOnError(fmt.Errorf("pass --yes to confirm"), "reset not confirmed")
	}

	c := openClub()
	defer c.Close()

	res, err := c.engine.ResetAll(context.Background(), adminCredential())
	exitOnError(err, "reset failed")

	fmt.Printf("Reset complete, cleared: %s\n", strings.Join(res.ClearedTables, ", "))
}
