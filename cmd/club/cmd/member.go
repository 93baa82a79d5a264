package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// memberCmd groups member management commands.
var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage club members",
}

var memberAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a member",
	Long: `Add a member with zeroed balances. Requires the admin credential.

Example:
  club member add "Alice" --credential secret`,
	Args: cobra.ExactArgs(1),
	Run:  runMemberAdd,
}

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List members",
	Args:  cobra.NoArgs,
	Run:   runMemberList,
}

var memberShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a member's balances and open borrowings",
	Args:  cobra.ExactArgs(1),
	Run:   runMemberShow,
}

var memberDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a member and all of their records",
	Long: `Delete a member and all of their records. Group pool balances are
left as they are. Requires the admin credential.

Example:
  club member delete 3 --credential secret`,
	Args: cobra.ExactArgs(1),
	Run:  runMemberDelete,
}

func init() {
	memberCmd.AddCommand(memberAddCmd, memberListCmd, memberShowCmd, memberDeleteCmd)
}

func runMemberAdd(cmd *cobra.Command, args []string) {
	c := openClub()
	defer c.Close()

	person, err := c.engine.CreateMember(context.Background(), args[0], adminCredential())
	exitOnError(err, "failed to add member")

	fmt.Printf("Added member %d: %s\n", person.ID, person.Name)
}

func runMemberList(cmd *cobra.Command, args []string) {
	c := openClub()
	defer c.Close()

	people, err := c.engine.ListMembers(context.Background())
	exitOnError(err, "failed to list members")

	if len(people) == 0 {
		fmt.Println("No members")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tJOINED")
	for _, p := range people {
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.In(c.loc).Format("2006-01-02"))
	}
	_ = w.Flush()
}

func runMemberShow(cmd *cobra.Command, args []string) {
	id := parseID(args[0])

	c := openClub()
	defer c.Close()

	st, err := c.engine.Statement(context.Background(), id)
	exitOnError(err, "failed to load member")

	fmt.Printf("\n=== %s (#%d) ===\n", st.Person.Name, st.Person.ID)
	fmt.Printf("Main savings:     %s\n", st.Balance.MainSavings.StringFixed(2))
	fmt.Printf("Validity savings: %s\n", st.Balance.ValiditySavings.StringFixed(2))
	fmt.Printf("Unit payments:    %d\n", st.UnitCount)

	if len(st.Borrowings) == 0 {
		fmt.Println("Open borrowings:  none")
	} else {
		fmt.Println("Open borrowings:")
		for _, b := range st.Borrowings {
			fmt.Printf("  #%d %-8s outstanding %s, due %s\n",
				b.ID, b.Pool, b.Outstanding.StringFixed(2), b.DueDate.In(c.loc).Format("2006-01-02"))
		}
	}
	fmt.Println()
}

func runMemberDelete(cmd *cobra.Command, args []string) {
	id := parseID(args[0])

	c := openClub()
	defer c.Close()

	res, err := c.engine.DeleteMember(context.Background(), id, adminCredential())
	exitOnError(err, "failed to delete member")

	fmt.Printf("Deleted member %d: %s\n", res.PersonID, res.Name)
	for table, n := range res.Removed {
		fmt.Printf("  %-16s %d rows\n", table, n)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		exitOnError(fmt.Errorf("%q is not a member ID", s), "invalid argument")
	}
	return id
}
