package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/crawlvec/internal/api/handlers"
	"github.com/cloo-solutions/crawlvec/internal/api/middleware"
	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/metrics"
	"github.com/cloo-solutions/crawlvec/internal/service"
)

type stubIndexer struct{ calls int }

func (s *stubIndexer) CrawlAndIndex(_ context.Context, in service.CrawlInput) (*domain.IndexResult, error) {
	s.calls++
	return &domain.IndexResult{Success: true, URL: in.URL, ChunksAdded: 1, Message: "ok"}, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, service.SearchInput) ([]domain.SearchHit, error) {
	return []domain.SearchHit{{Content: "hit", Distance: 0.2}}, nil
}

type stubCollection struct{ deleted bool }

func (s *stubCollection) CollectionName() string { return "crawl_docs" }

func (s *stubCollection) Health(context.Context) domain.HealthReport {
	return domain.HealthReport{Status: domain.HealthStatusHealthy, Collection: "crawl_docs", StoreEndpoint: "http://chroma"}
}

func (s *stubCollection) Stats(context.Context) (*domain.CollectionStats, error) {
	return &domain.CollectionStats{CollectionName: "crawl_docs", TotalDocuments: 2}, nil
}

func (s *stubCollection) DeleteCollection(context.Context) error {
	s.deleted = true
	return nil
}

func (s *stubCollection) Sources(context.Context) ([]*domain.CrawlSource, error) {
	return nil, domain.ErrSourcesNotConfigured
}

type fixture struct {
	router     http.Handler
	indexer    *stubIndexer
	collection *stubCollection
}

func newFixture(auth middleware.AuthValidator) *fixture {
	f := &fixture{indexer: &stubIndexer{}, collection: &stubCollection{}}
	f.router = NewRouter(RouterConfig{
		AuthValidator:     auth,
		CrawlHandler:      handlers.NewCrawlHandler(f.indexer),
		SearchHandler:     handlers.NewSearchHandler(stubSearcher{}),
		CollectionHandler: handlers.NewCollectionHandler(f.collection),
		Metrics:           metrics.New(),
	})
	return f
}

func (f *fixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	f := newFixture(nil)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/stats", "", http.StatusOK},
		{http.MethodPost, "/search", `{"query":"q"}`, http.StatusOK},
		{http.MethodPost, "/crawl", `{"url":"https://example.com/"}`, http.StatusOK},
		{http.MethodGet, "/sources", "", http.StatusNotImplemented},
		{http.MethodDelete, "/collection", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
		{http.MethodGet, "/crawl", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_HealthPayload(t *testing.T) {
	f := newFixture(nil)

	w := f.do(http.MethodGet, "/health", "", "")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "crawl_docs", body["collection"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_APIKeyGuardsMutations(t *testing.T) {
	f := newFixture(middleware.StaticKey("s3cret"))

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/crawl", `{"url":"https://example.com/"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodDelete, "/collection", "", "wrong").Code)
	assert.Zero(t, f.indexer.calls)
	assert.False(t, f.collection.deleted)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/crawl", `{"url":"https://example.com/"}`, "s3cret").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/collection", "", "s3cret").Code)
	assert.True(t, f.collection.deleted)

	// read routes stay open
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/search", `{"query":"q"}`, "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", "").Code)
}

func TestRouter_MetricsCountRequests(t *testing.T) {
	f := newFixture(nil)
	f.do(http.MethodGet, "/stats", "", "")

	w := f.do(http.MethodGet, "/metrics", "", "")

	assert.Contains(t, w.Body.String(), `crawlvec_http_requests_total{method="GET",route="/stats",status="200"} 1`)
}
