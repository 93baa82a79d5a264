package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

var (
	historyPerson int64
	historyTypes  []string
	historySince  string
	historyLimit  int
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List transaction log entries, newest first",
	Long: `List transaction log entries, newest first.

Example:
  club history --person 3 --type SAVING --type FINE
  club history --since 2025-03-01 --limit 20`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

func init() {
	historyCmd.Flags().Int64Var(&historyPerson, "person", 0, "only entries for this member ID")
	historyCmd.Flags().StringSliceVar(&historyTypes, "type", nil, "only these transaction types (repeatable)")
	historyCmd.Flags().StringVar(&historySince, "since", "", "only entries on or after this date (YYYY-MM-DD)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of entries")
}

func runHistory(cmd *cobra.Command, args []string) {
	c := openClub()
	defer c.Close()

	f := ledger.HistoryFilter{Limit: historyLimit}
	if historyPerson > 0 {
		f.PersonID = &historyPerson
	}
	for _, t := range historyTypes {
		f.Types = append(f.Types, ledger.LogType(strings.ToUpper(t)))
	}
	if historySince != "" {
		since, err := time.ParseInLocation(ledger.DateLayout, historySince, c.loc)
		exitOnError(err, "invalid --since date")
		f.Since = since
	}

	entries, err := c.engine.History(context.Background(), f)
	exitOnError(err, "failed to read history")

	if len(entries) == 0 {
		fmt.Println("No transactions")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tTIME\tMEMBER\tTYPE\tAMOUNT\tMAIN POOL\tVALIDITY POOL\t")
	for _, e := range entries {
		member := "-"
		if e.PersonID != nil {
			member = fmt.Sprintf("%d", *e.PersonID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			e.ID,
			e.CreatedAt.In(c.loc).Format("2006-01-02 15:04"),
			member,
			e.Type,
			e.Amount.StringFixed(2),
			e.MainPoolAfter.StringFixed(2),
			e.ValidityPoolAfter.StringFixed(2))
	}
	_ = w.Flush()
}
