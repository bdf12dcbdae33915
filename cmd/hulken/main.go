/*
hulken - data-quality reconciliation for the analytics warehouse

Usage:

	hulken run                          # Run every check over the trailing 30 days
	hulken run --checks freshness,pii   # Run a subset, in the given order
	hulken run --watch 1h               # Re-run every hour and print the trend
	hulken watchdog                     # Sync lag only, alert on new stale tables
	hulken checks                       # List the registered checks
	hulken report show                  # Print the latest report
	hulken history                      # Print recent runs
	hulken baseline                     # Snapshot the warehouse tables

Exit codes: 0 PASS, 1 WARNING or ERROR, 2 FAIL, 3 setup or configuration error.
*/
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	cmd := newRootCmd(newApp())
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return exitPass
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
	return exitSetup
}
