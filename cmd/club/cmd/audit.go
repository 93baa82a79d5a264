package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// auditCmd represents the audit command.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Reconcile pool balances with the transaction log",
	Long: `Sum the pool deltas recorded in the transaction log and compare them
with the current pool balances. Exits non-zero when they differ.`,
	Args: cobra.NoArgs,
	Run:  runAudit,
}

func runAudit(cmd *cobra.Command, args []string) {
	c := openClub()
	defer c.Close()

	res, err := c.engine.Audit(context.Background())
	exitOnError(err, "audit failed")

	fmt.Println("\n=== Pool Audit ===")
	fmt.Printf("%-10s %14s %14s\n", "POOL", "BALANCE", "LOGGED")
	fmt.Printf("%-10s %14s %14s\n", "MAIN", res.Pools.Main.StringFixed(2), res.LogDeltas.Main.StringFixed(2))
	fmt.Printf("%-10s %14s %14s\n", "VALIDITY", res.Pools.Validity.StringFixed(2), res.LogDeltas.Validity.StringFixed(2))
	fmt.Println()

	if !res.Reconciled {
		fmt.Println("Pools do NOT reconcile with the transaction log")
		c.Close()
		os.Exit(2)
	}
	fmt.Println("Pools reconcile with the transaction log")
}
