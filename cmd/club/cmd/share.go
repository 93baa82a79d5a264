package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// shareCmd represents the share command.
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Show the current value of one saved unit",
	Args:  cobra.NoArgs,
	Run:   runShare,
}

func runShare(cmd *cobra.Command, args []string) {
	c := openClub()
	defer c.Close()

	res, err := c.engine.Share(context.Background())
	exitOnError(err, "failed to compute share")

	fmt.Printf("Total savings:  %s\n", res.TotalSavings.StringFixed(2))
	fmt.Printf("Total units:    %d\n", res.TotalUnits)
	fmt.Printf("Share per unit: %s\n", res.SharePerUnit.StringFixed(2))
}
