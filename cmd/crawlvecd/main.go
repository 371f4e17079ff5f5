package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/crawlvec/internal/cli"
	"github.com/cloo-solutions/crawlvec/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "crawlvecd",
		Short:         "crawlvec API server",
		Long:          "Runs the crawl-and-search API server and manages its database schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}
	rootCmd.SetArgs(args)

	if handled, err := cli.CheckHelpJSON(rootCmd, args, os.Stdout); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
