package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Page), args.Error(1)
}

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Endpoint() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockVectorStore) GetOrCreateCollection(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollectionInfo), args.Error(1)
}

func (m *MockVectorStore) Upsert(ctx context.Context, collection *domain.CollectionInfo, records []domain.IndexedRecord) error {
	args := m.Called(ctx, collection, records)
	return args.Error(0)
}

func (m *MockVectorStore) Query(ctx context.Context, collection *domain.CollectionInfo, embedding []float32, n int) (*domain.QueryResult, error) {
	args := m.Called(ctx, collection, embedding, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueryResult), args.Error(1)
}

func (m *MockVectorStore) Count(ctx context.Context, collection *domain.CollectionInfo) (int, error) {
	args := m.Called(ctx, collection)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorStore) DeleteCollection(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

type MockSourceRegistry struct {
	mock.Mock
}

func (m *MockSourceRegistry) RecordSource(ctx context.Context, src *domain.CrawlSource) error {
	args := m.Called(ctx, src)
	return args.Error(0)
}

func (m *MockSourceRegistry) ListSources(ctx context.Context, collection string) ([]*domain.CrawlSource, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CrawlSource), args.Error(1)
}

func (m *MockSourceRegistry) ListStaleSources(ctx context.Context, collection string, indexedBefore time.Time, limit int) ([]*domain.CrawlSource, error) {
	args := m.Called(ctx, collection, indexedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CrawlSource), args.Error(1)
}

type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) PutSnapshot(ctx context.Context, sourceURL, content string) (string, error) {
	args := m.Called(ctx, sourceURL, content)
	return args.String(0), args.Error(1)
}

// countingRecorder records observations for assertions.
type countingRecorder struct {
	crawls  map[string]int
	chunks  int
	stages  map[string]int
	searchs []int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{crawls: map[string]int{}, stages: map[string]int{}}
}

func (r *countingRecorder) ObserveCrawl(outcome string)                { r.crawls[outcome]++ }
func (r *countingRecorder) ObserveChunks(n int)                        { r.chunks += n }
func (r *countingRecorder) ObserveSearch(hits int)                     { r.searchs = append(r.searchs, hits) }
func (r *countingRecorder) ObserveStage(stage string, _ time.Duration) { r.stages[stage]++ }

func vectors(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		v[0] = float32(i + 1)
		out[i] = v
	}
	return out
}
