package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CrawlCmd creates the crawl command.
func CrawlCmd() *cobra.Command {
	var (
		maxDepth  int
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a page and index it",
		Long:  "Fetches the page, splits its text into chunks and stores their embeddings in the collection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := CrawlRequest{URL: args[0]}
			if cmd.Flags().Changed("max-depth") {
				req.MaxDepth = &maxDepth
			}
			if cmd.Flags().Changed("chunk-size") {
				req.ChunkSize = &chunkSize
			}

			resp, err := NewAPIClientWithCmd(cmd).Crawl(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("crawl failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, resp)
			}
			if !resp.Success {
				fmt.Fprintf(out, "Nothing indexed for %s: %s\n", resp.URL, resp.Message)
				return nil
			}
			fmt.Fprintln(out, resp.Message)
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxDepth, "max-depth", "d", 1, "Link depth (0-5)")
	cmd.Flags().IntVarP(&chunkSize, "chunk-size", "c", 1000, "Characters per chunk")

	return cmd
}
