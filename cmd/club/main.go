// Package main is the entry point for the club CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/savings-club/cmd/club/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
