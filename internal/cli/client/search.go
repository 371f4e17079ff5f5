package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed content",
		Long:  "Runs a semantic search over the collection, nearest chunks first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := SearchRequest{Query: args[0]}
			if cmd.Flags().Changed("limit") {
				req.NResults = &limit
			}

			resp, err := NewAPIClientWithCmd(cmd).Search(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, resp)
			}

			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}

			fmt.Fprintf(out, "Found %d results:\n\n", len(resp.Results))
			for i, result := range resp.Results {
				source, _ := result.Metadata["source_url"].(string)
				if source == "" {
					source = "N/A"
				}
				fmt.Fprintf(out, "%d. %s (%.4f)\n", i+1, source, result.Distance)
				fmt.Fprintf(out, "   %s\n", truncate(strings.Join(strings.Fields(result.Content), " "), 150))
				if i < len(resp.Results)-1 {
					fmt.Fprintln(out, strings.Repeat("-", 40))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")

	return cmd
}
