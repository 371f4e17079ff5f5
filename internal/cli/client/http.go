package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIKey = "CRAWLVEC_API_KEY"
	envAPIURL = "CRAWLVEC_API_URL"

	defaultAPIURL = "http://localhost:8000"
)

type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAPIClientWithCmd creates an APIClient with config cascade: flag → env → default.
// If cmd is nil, skips flag checking.
func NewAPIClientWithCmd(cmd *cobra.Command) *APIClient {
	_ = godotenv.Load()

	var apiKey, baseURL string
	if cmd != nil {
		if flagKey, err := cmd.Flags().GetString("api-key"); err == nil && flagKey != "" {
			apiKey = flagKey
		}
		if flagURL, err := cmd.Flags().GetString("api-url"); err == nil && flagURL != "" {
			baseURL = flagURL
		}
	}

	if apiKey == "" {
		apiKey = os.Getenv(envAPIKey)
	}
	if baseURL == "" {
		baseURL = os.Getenv(envAPIURL)
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	return NewAPIClientWithConfig(apiKey, baseURL)
}

// NewAPIClientWithConfig creates an APIClient with explicit config. An empty
// apiKey sends no Authorization header.
func NewAPIClientWithConfig(apiKey, baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			// crawls wait on the fetch and embedding round trips
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

type HealthResponse struct {
	Status          string `json:"status"`
	StoreEndpoint   string `json:"store_endpoint,omitempty"`
	Collection      string `json:"collection,omitempty"`
	CollectionCount int    `json:"collection_count"`
	Error           string `json:"error,omitempty"`
}

type CrawlRequest struct {
	URL       string `json:"url"`
	MaxDepth  *int   `json:"max_depth,omitempty"`
	ChunkSize *int   `json:"chunk_size,omitempty"`
}

type CrawlResponse struct {
	Success     bool   `json:"success"`
	URL         string `json:"url"`
	ChunksAdded int    `json:"chunks_added"`
	Message     string `json:"message"`
}

type SearchRequest struct {
	Query    string `json:"query"`
	NResults *int   `json:"n_results,omitempty"`
}

type SearchResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type StatsResponse struct {
	CollectionName string `json:"collection_name"`
	TotalDocuments int    `json:"total_documents"`
	StoreEndpoint  string `json:"store_endpoint"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Source struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	ChunkSize     int    `json:"chunk_size"`
	MaxDepth      int    `json:"max_depth"`
	Chunks        int    `json:"chunks"`
	LastIndexedAt string `json:"last_indexed_at"`
}

type SourcesResponse struct {
	Sources []Source `json:"sources"`
}

func (c *APIClient) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Crawl(ctx context.Context, req CrawlRequest) (*CrawlResponse, error) {
	var resp CrawlResponse
	if err := c.do(ctx, http.MethodPost, "/crawl", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Stats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) DeleteCollection(ctx context.Context) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.do(ctx, http.MethodDelete, "/collection", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Sources(ctx context.Context) (*SourcesResponse, error) {
	var resp SourcesResponse
	if err := c.do(ctx, http.MethodGet, "/sources", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
