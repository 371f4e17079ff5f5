package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

// Fetcher retrieves a page and extracts its text.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest) (*domain.Page, error)
}

// EmbeddingClient returns one vector per input text, in input order.
type EmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is a named-collection store supporting upsert by id and
// nearest-neighbour query.
type VectorStore interface {
	// Endpoint identifies the store for health and stats reporting.
	Endpoint() string
	GetOrCreateCollection(ctx context.Context, name string) (*domain.CollectionInfo, error)
	Upsert(ctx context.Context, collection *domain.CollectionInfo, records []domain.IndexedRecord) error
	Query(ctx context.Context, collection *domain.CollectionInfo, embedding []float32, n int) (*domain.QueryResult, error)
	Count(ctx context.Context, collection *domain.CollectionInfo) (int, error)
	// DeleteCollection returns domain.ErrCollectionNotFound when name does not exist.
	DeleteCollection(ctx context.Context, name string) error
}

// Heartbeater is implemented by stores with a liveness endpoint that is
// cheaper than a collection lookup.
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// SourceRegistry records which URLs were indexed into a collection.
type SourceRegistry interface {
	RecordSource(ctx context.Context, src *domain.CrawlSource) error
	ListSources(ctx context.Context, collection string) ([]*domain.CrawlSource, error)
	ListStaleSources(ctx context.Context, collection string, indexedBefore time.Time, limit int) ([]*domain.CrawlSource, error)
}

// SnapshotStore archives the extracted text of crawled pages.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, sourceURL, content string) (string, error)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveCrawl(outcome string)
	ObserveChunks(n int)
	ObserveSearch(hits int)
	ObserveStage(stage string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCrawl(string)                {}
func (nopRecorder) ObserveChunks(int)                  {}
func (nopRecorder) ObserveSearch(int)                  {}
func (nopRecorder) ObserveStage(string, time.Duration) {}
