package client

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// HealthCmd creates the health command.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service and vector store health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				if err := printJSON(out, resp); err != nil {
					return err
				}
			} else if resp.Status == "healthy" {
				fmt.Fprintf(out, "healthy: %s (%d docs) at %s\n", resp.Collection, resp.CollectionCount, resp.StoreEndpoint)
			} else {
				fmt.Fprintf(out, "%s: %s\n", resp.Status, resp.Error)
			}

			if resp.Status != "healthy" {
				return errors.New("service is unhealthy")
			}
			return nil
		},
	}
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, resp)
			}
			fmt.Fprintf(out, "Collection: %s\n", resp.CollectionName)
			fmt.Fprintf(out, "Documents:  %d\n", resp.TotalDocuments)
			fmt.Fprintf(out, "Store:      %s\n", resp.StoreEndpoint)
			return nil
		},
	}
}

// DropCmd creates the drop command, which deletes the whole collection.
func DropCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete the entire collection",
		Long:  "Irreversibly deletes every indexed chunk in the collection.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete the collection without --yes")
			}

			resp, err := NewAPIClientWithCmd(cmd).DeleteCollection(cmd.Context())
			if err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}

			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")

	return cmd
}

// SourcesCmd creates the sources command.
func SourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List indexed source URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Sources(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sources failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, resp)
			}
			if len(resp.Sources) == 0 {
				fmt.Fprintln(out, "No sources indexed.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "URL\tCHUNKS\tCHUNK SIZE\tLAST INDEXED")
			for _, src := range resp.Sources {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", src.URL, src.Chunks, src.ChunkSize, src.LastIndexedAt)
			}
			return tw.Flush()
		},
	}
}
