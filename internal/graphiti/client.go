// Package graphiti is a small client for a Graphiti knowledge-graph server.
package graphiti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// APIError is an unexpected status from the graph server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graphiti error (%d): %s", e.StatusCode, e.Body)
}

type HealthStatus struct {
	Status string `json:"status"`
}

// Message is one episode sent to the graph.
type Message struct {
	Content   string         `json:"content"`
	Role      string         `json:"role"`
	RoleType  string         `json:"role_type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type addMessagesRequest struct {
	GroupID  string    `json:"group_id"`
	Messages []Message `json:"messages"`
}

type SearchQuery struct {
	Query      string `json:"query"`
	GroupID    string `json:"group_id"`
	NumResults int    `json:"num_results"`
}

// SearchResult keeps nodes and edges opaque; callers only count them.
type SearchResult struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges []json.RawMessage `json:"edges"`
}

func (c *Client) URL() string {
	return c.baseURL
}

func (c *Client) Healthcheck(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/healthcheck", nil, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return &status, nil
}

// AddMessages queues messages for ingestion under groupID. The server
// answers 200 or 202.
func (c *Client) AddMessages(ctx context.Context, groupID string, messages []Message) error {
	req := addMessagesRequest{GroupID: groupID, Messages: messages}
	return c.do(ctx, http.MethodPost, "/messages", req, nil, http.StatusOK, http.StatusAccepted)
}

func (c *Client) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	var result SearchResult
	if err := c.do(ctx, http.MethodPost, "/search", query, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, accept ...int) error {
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if !accepted(resp.StatusCode, accept) {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func accepted(status int, codes []int) bool {
	for _, code := range codes {
		if status == code {
			return true
		}
	}
	return false
}
