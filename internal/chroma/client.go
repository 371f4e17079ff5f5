// Package chroma is a client for the Chroma v2 REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

const (
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"

	defaultTimeout = 30 * time.Second
)

// Config holds the connection settings for a Chroma server.
type Config struct {
	URL      string
	Token    string
	Tenant   string
	Database string
}

// Client implements the vector store operations against Chroma.
type Client struct {
	baseURL    string
	token      string
	tenant     string
	database   string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Tenant == "" {
		cfg.Tenant = DefaultTenant
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
		tenant:   cfg.Tenant,
		database: cfg.Database,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// APIError is a non-2xx response from Chroma.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chroma error (%d): %s", e.StatusCode, e.Message)
}

// Endpoint returns the server URL.
func (c *Client) Endpoint() string {
	return c.baseURL
}

// Heartbeat checks that the server answers.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, nil)
}

type collection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// GetOrCreateCollection returns the collection called name, creating it with
// the default description when absent.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	req := map[string]any{
		"name":          name,
		"metadata":      map[string]any{"description": domain.CollectionDescription},
		"get_or_create": true,
	}

	var coll collection
	if err := c.do(ctx, http.MethodPost, c.collectionsPath(), req, &coll); err != nil {
		return nil, err
	}
	return &domain.CollectionInfo{ID: coll.ID, Name: coll.Name, Metadata: coll.Metadata}, nil
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

// Upsert inserts or replaces records by id in a single request.
func (c *Client) Upsert(ctx context.Context, coll *domain.CollectionInfo, records []domain.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}

	req := upsertRequest{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Documents:  make([]string, len(records)),
		Metadatas:  make([]map[string]any, len(records)),
	}
	for i, r := range records {
		req.IDs[i] = r.ID
		req.Embeddings[i] = r.Embedding
		req.Documents[i] = r.Text
		req.Metadatas[i] = r.Metadata
	}

	return c.do(ctx, http.MethodPost, c.collectionPath(coll.ID)+"/upsert", req, nil)
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]*float64       `json:"distances"`
}

// Query returns the n nearest records to embedding, nearest first.
func (c *Client) Query(ctx context.Context, coll *domain.CollectionInfo, embedding []float32, n int) (*domain.QueryResult, error) {
	req := queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        n,
		Include:         []string{"documents", "metadatas", "distances"},
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, c.collectionPath(coll.ID)+"/query", req, &resp); err != nil {
		return nil, err
	}

	result := &domain.QueryResult{}
	if len(resp.IDs) > 0 {
		result.IDs = resp.IDs[0]
	}
	if len(resp.Documents) > 0 {
		result.Documents = make([]string, len(resp.Documents[0]))
		for i, d := range resp.Documents[0] {
			if d != nil {
				result.Documents[i] = *d
			}
		}
	}
	if len(resp.Metadatas) > 0 {
		result.Metadatas = resp.Metadatas[0]
	}
	if len(resp.Distances) > 0 {
		result.Distances = make([]float64, len(resp.Distances[0]))
		for i, d := range resp.Distances[0] {
			if d != nil {
				result.Distances[i] = *d
			}
		}
	}
	return result, nil
}

// Count returns the number of records in the collection.
func (c *Client) Count(ctx context.Context, coll *domain.CollectionInfo) (int, error) {
	var count int
	if err := c.do(ctx, http.MethodGet, c.collectionPath(coll.ID)+"/count", nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteCollection removes the collection called name.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, c.collectionPath(name), nil, nil)
	if isNotFound(err) {
		return domain.ErrCollectionNotFound
	}
	return err
}

func (c *Client) collectionsPath() string {
	return "/api/v2/tenants/" + url.PathEscape(c.tenant) +
		"/databases/" + url.PathEscape(c.database) + "/collections"
}

func (c *Client) collectionPath(idOrName string) string {
	return c.collectionsPath() + "/" + url.PathEscape(idOrName)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
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

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
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

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage extracts the message from Chroma's {"error", "message"} body.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "" && payload.Message != "":
			return payload.Error + ": " + payload.Message
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}

func isNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "notfound")
}
