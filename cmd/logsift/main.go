package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:   "logsift",
		Short: "Oracle-assisted log triage pipeline",
	}

	root.AddCommand(
		runCMD(),
		preprocessCMD(),
		refineCMD(),
		triageCMD(),
		ticketsCMD(),
		filtersCMD(),
		reportCMD(),
		reviewCMD(),
		historyCMD(),
		migrateCMD(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
