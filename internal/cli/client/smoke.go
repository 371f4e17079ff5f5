package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/crawlvec/internal/graphiti"
)

const (
	envGraphURL = "CRAWLVEC_GRAPH_URL"

	defaultSmokeURL     = "https://docs.railway.app/guides/deployments"
	defaultSmokeQuery   = "How to deploy applications"
	defaultSmokeGroupID = "second_brain"
	defaultResultsFile  = "test_results.json"

	graphMessageLimit = 3
)

// SmokeConfig controls one smoke run.
type SmokeConfig struct {
	URL       string
	Query     string
	GroupID   string
	ChunkSize int
}

// SmokeResults is written to the results file after every run.
type SmokeResults struct {
	Timestamp   string           `json:"timestamp"`
	TestsPassed int              `json:"tests_passed"`
	TestsFailed int              `json:"tests_failed"`
	Details     []map[string]any `json:"details"`
}

func (r *SmokeResults) pass(test string, fields map[string]any) {
	r.TestsPassed++
	entry := map[string]any{"test": test, "status": "PASSED"}
	for k, v := range fields {
		entry[k] = v
	}
	r.Details = append(r.Details, entry)
}

func (r *SmokeResults) fail(test string, err error) {
	r.TestsFailed++
	r.Details = append(r.Details, map[string]any{"test": test, "status": "FAILED", "error": err.Error()})
}

// SmokeRunner drives the service and the knowledge graph end to end.
type SmokeRunner struct {
	api   *APIClient
	graph *graphiti.Client
	cfg   SmokeConfig
	out   io.Writer
	now   func() time.Time
}

func NewSmokeRunner(api *APIClient, graph *graphiti.Client, cfg SmokeConfig, out io.Writer) *SmokeRunner {
	return &SmokeRunner{api: api, graph: graph, cfg: cfg, out: out, now: time.Now}
}

// Run executes health, crawl, search, graph ingestion and stats in order.
// A failed health check or crawl stops the run.
func (s *SmokeRunner) Run(ctx context.Context) *SmokeResults {
	results := &SmokeResults{Timestamp: s.now().Format(time.RFC3339), Details: []map[string]any{}}

	fmt.Fprintf(s.out, "Service: %s\nGraph:   %s\n", s.api.BaseURL(), s.graph.URL())

	if err := s.checkHealth(ctx); err != nil {
		results.fail("health_endpoints", err)
		fmt.Fprintf(s.out, "FAIL health: %v (aborting)\n", err)
		return results
	}
	results.pass("health_endpoints", map[string]any{"message": "All services healthy"})
	fmt.Fprintln(s.out, "PASS health")

	crawl, err := s.crawl(ctx)
	if err != nil {
		results.fail("crawl_and_index", err)
		fmt.Fprintf(s.out, "FAIL crawl: %v (aborting)\n", err)
		return results
	}
	results.pass("crawl_and_index", map[string]any{"chunks_added": crawl.ChunksAdded, "url": crawl.URL})
	fmt.Fprintf(s.out, "PASS crawl: %d chunks from %s\n", crawl.ChunksAdded, crawl.URL)

	hits, err := s.search(ctx)
	if err != nil {
		results.fail("semantic_search", err)
		fmt.Fprintf(s.out, "FAIL search: %v\n", err)
	} else {
		results.pass("semantic_search", map[string]any{"results_count": len(hits), "top_distance": hits[0].Distance})
		fmt.Fprintf(s.out, "PASS search: %d results, top distance %.4f\n", len(hits), hits[0].Distance)
	}

	if len(hits) == 0 {
		fmt.Fprintln(s.out, "SKIP graph: no search results to send")
	} else if sent, err := s.pushToGraph(ctx, hits); err != nil {
		results.fail("graphiti_integration", err)
		fmt.Fprintf(s.out, "FAIL graph: %v\n", err)
	} else {
		results.pass("graphiti_integration", map[string]any{"messages_sent": sent, "group_id": s.cfg.GroupID})
		fmt.Fprintf(s.out, "PASS graph: %d messages to %s\n", sent, s.cfg.GroupID)
	}

	total, err := s.stats(ctx)
	if err != nil {
		results.fail("stats_verification", err)
		fmt.Fprintf(s.out, "FAIL stats: %v\n", err)
	} else {
		results.pass("stats_verification", map[string]any{"total_documents": total})
		fmt.Fprintf(s.out, "PASS stats: %d documents\n", total)
	}

	return results
}

func (s *SmokeRunner) checkHealth(ctx context.Context) error {
	health, err := s.api.Health(ctx)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("service not healthy: %s", health.Error)
	}
	if health.StoreEndpoint == "" {
		return errors.New("service health is missing store_endpoint")
	}

	graphHealth, err := s.graph.Healthcheck(ctx)
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if graphHealth.Status != "healthy" {
		return fmt.Errorf("graph not healthy: %s", graphHealth.Status)
	}
	return nil
}

func (s *SmokeRunner) crawl(ctx context.Context) (*CrawlResponse, error) {
	maxDepth := 1
	chunkSize := s.cfg.ChunkSize
	resp, err := s.api.Crawl(ctx, CrawlRequest{URL: s.cfg.URL, MaxDepth: &maxDepth, ChunkSize: &chunkSize})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("crawl not successful: %s", resp.Message)
	}
	if resp.ChunksAdded <= 0 {
		return nil, errors.New("no chunks were added")
	}
	return resp, nil
}

func (s *SmokeRunner) search(ctx context.Context) ([]SearchResult, error) {
	n := graphMessageLimit
	resp, err := s.api.Search(ctx, SearchRequest{Query: s.cfg.Query, NResults: &n})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, errors.New("no search results found")
	}
	return resp.Results, nil
}

func (s *SmokeRunner) pushToGraph(ctx context.Context, hits []SearchResult) (int, error) {
	if len(hits) > graphMessageLimit {
		hits = hits[:graphMessageLimit]
	}

	messages := make([]graphiti.Message, 0, len(hits))
	for i, hit := range hits {
		chunkIndex, ok := hit.Metadata["chunk_index"]
		if !ok {
			chunkIndex = i
		}
		sourceURL, _ := hit.Metadata["source_url"].(string)
		messages = append(messages, graphiti.Message{
			Content:   hit.Content,
			Role:      "system",
			RoleType:  "system",
			Timestamp: s.now(),
			Metadata: map[string]any{
				"source":          "crawlvec",
				"source_url":      sourceURL,
				"relevance_score": hit.Distance,
				"chunk_index":     chunkIndex,
			},
		})
	}

	if err := s.graph.AddMessages(ctx, s.cfg.GroupID, messages); err != nil {
		return 0, err
	}

	// informational only
	result, err := s.graph.Search(ctx, graphiti.SearchQuery{Query: s.cfg.Query, GroupID: s.cfg.GroupID, NumResults: 5})
	if err == nil {
		fmt.Fprintf(s.out, "     graph has %d nodes, %d edges\n", len(result.Nodes), len(result.Edges))
	}

	return len(messages), nil
}

func (s *SmokeRunner) stats(ctx context.Context) (int, error) {
	stats, err := s.api.Stats(ctx)
	if err != nil {
		return 0, err
	}
	if stats.TotalDocuments <= 0 {
		return 0, errors.New("no documents in collection")
	}
	return stats.TotalDocuments, nil
}

// WriteResults saves results as indented JSON.
func WriteResults(path string, results *SmokeResults) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SmokeCmd creates the smoke command.
func SmokeCmd() *cobra.Command {
	var (
		cfg         SmokeConfig
		graphURL    string
		resultsFile string
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run an end-to-end check against the service and knowledge graph",
		Long: `Checks health of both services, crawls a page, searches it, sends the top
hits to the knowledge graph and verifies collection stats. Results are written
to a JSON file; the command fails if any step failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if graphURL == "" {
				graphURL = os.Getenv(envGraphURL)
			}
			if graphURL == "" {
				return fmt.Errorf("graph URL not set (use --graph-url or %s)", envGraphURL)
			}

			runner := NewSmokeRunner(NewAPIClientWithCmd(cmd), graphiti.NewClient(graphURL), cfg, cmd.OutOrStdout())
			results := runner.Run(cmd.Context())

			if err := WriteResults(resultsFile, results); err != nil {
				return fmt.Errorf("failed to write results: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nPassed: %d  Failed: %d  (saved to %s)\n", results.TestsPassed, results.TestsFailed, resultsFile)

			if results.TestsFailed > 0 {
				return fmt.Errorf("%d smoke checks failed", results.TestsFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&graphURL, "graph-url", "", "Knowledge graph base URL")
	cmd.Flags().StringVar(&cfg.URL, "url", defaultSmokeURL, "Page to crawl")
	cmd.Flags().StringVar(&cfg.Query, "query", defaultSmokeQuery, "Search query")
	cmd.Flags().StringVar(&cfg.GroupID, "group-id", defaultSmokeGroupID, "Knowledge graph group")
	cmd.Flags().IntVar(&cfg.ChunkSize, "chunk-size", 1000, "Characters per chunk")
	cmd.Flags().StringVar(&resultsFile, "results", defaultResultsFile, "Results file")

	return cmd
}
