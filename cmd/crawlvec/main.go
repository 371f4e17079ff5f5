package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/crawlvec/internal/cli"
	"github.com/cloo-solutions/crawlvec/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "crawlvec",
		Short: "crawlvec CLI - crawl pages into a vector store and search them",
		Long: `crawlvec talks to a running crawlvecd server.

Environment variables:
  CRAWLVEC_API_URL     API base URL (default: http://localhost:8000)
  CRAWLVEC_API_KEY     API key for crawl and drop, when the server requires one
  CRAWLVEC_GRAPH_URL   knowledge graph URL used by smoke`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.HealthCmd())
	rootCmd.AddCommand(client.CrawlCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.DropCmd())
	rootCmd.AddCommand(client.SourcesCmd())
	rootCmd.AddCommand(client.SmokeCmd())

	if handled, err := cli.CheckHelpJSON(rootCmd, os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
