package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// penaltiesCmd represents the penalties command.
var penaltiesCmd = &cobra.Command{
	Use:   "penalties",
	Short: "Run the overdue penalty sweep once",
	Long: `Compound every overdue open borrowing by the number of whole periods
elapsed since its due date or its last penalty. Running it twice inside the
same period applies nothing the second time.

Example:
  club penalties`,
	Args: cobra.NoArgs,
	Run:  runPenalties,
}

func runPenalties(cmd *cobra.Command, args []string) {
	c := openClub()
	defer c.Close()

	res, err := c.engine.RunPenalties(context.Background())
	exitOnError(err, "penalty sweep failed")

	fmt.Printf("Checked %d open borrowings, penalized %d\n", res.Checked, res.Penalized)
	for _, a := range res.Applied {
		fmt.Printf("  #%d member %d %-8s %d period(s): %s -> %s (+%s)\n",
			a.BorrowingID, a.PersonID, a.Pool, a.Periods,
			a.Previous.StringFixed(2), a.NewOutstanding.StringFixed(2), a.Delta.StringFixed(2))
	}
}
