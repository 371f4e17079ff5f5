package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/telemetry"
)

// Crawl outcomes reported to the Recorder.
const (
	CrawlOutcomeIndexed = "indexed"
	CrawlOutcomeEmpty   = "empty"
	CrawlOutcomeFailed  = "failed"
)

const (
	msgNoContent = "No content extracted from page"
	msgNoChunks  = "No chunks created from content"
)

// IndexingService runs the fetch, chunk, embed and upsert pipeline.
type IndexingService struct {
	fetcher    Fetcher
	embedder   EmbeddingClient
	store      VectorStore
	collection string

	sources   SourceRegistry
	snapshots SnapshotStore
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// IndexingOption configures optional collaborators of IndexingService.
type IndexingOption func(*IndexingService)

// WithSourceRegistry records every successful index.
func WithSourceRegistry(r SourceRegistry) IndexingOption {
	return func(s *IndexingService) { s.sources = r }
}

// WithSnapshotStore archives the extracted text of every crawled page.
func WithSnapshotStore(st SnapshotStore) IndexingOption {
	return func(s *IndexingService) { s.snapshots = st }
}

func WithRecorder(r Recorder) IndexingOption {
	return func(s *IndexingService) { s.recorder = r }
}

func WithLogger(l *slog.Logger) IndexingOption {
	return func(s *IndexingService) { s.logger = l }
}

// NewIndexingService creates an IndexingService writing into collection.
func NewIndexingService(
	fetcher Fetcher,
	embedder EmbeddingClient,
	store VectorStore,
	collection string,
	opts ...IndexingOption,
) *IndexingService {
	s := &IndexingService{
		fetcher:    fetcher,
		embedder:   embedder,
		store:      store,
		collection: collection,
		recorder:   nopRecorder{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CrawlAndIndex fetches input.URL, chunks its text and upserts one record per
// chunk. Empty pages are reported through the result, not as errors.
func (s *IndexingService) CrawlAndIndex(ctx context.Context, input CrawlInput) (*domain.IndexResult, error) {
	input, err := validateCrawlInput(input)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "IndexingService.CrawlAndIndex", telemetry.SpanAttributes{
		Collection: s.collection,
		SourceURL:  input.URL,
		Operation:  "crawl",
	})
	defer span.End()

	result, err := s.crawlAndIndex(ctx, input)
	if err != nil {
		s.recorder.ObserveCrawl(CrawlOutcomeFailed)
		span.SetError(err)
		return nil, err
	}
	if result.Success {
		s.recorder.ObserveCrawl(CrawlOutcomeIndexed)
		s.recorder.ObserveChunks(result.ChunksAdded)
	} else {
		s.recorder.ObserveCrawl(CrawlOutcomeEmpty)
	}
	return result, nil
}

func (s *IndexingService) crawlAndIndex(ctx context.Context, input CrawlInput) (*domain.IndexResult, error) {
	page, err := s.fetch(ctx, input)
	if err != nil {
		return nil, err
	}

	text := page.Text()
	if text == "" {
		return emptyResult(input.URL, msgNoContent, domain.OutcomeEmptyContent), nil
	}

	stageStart := time.Now()
	chunks := BuildChunks(input.URL, text, input.ChunkSize)
	s.recorder.ObserveStage("chunk", time.Since(stageStart))
	if len(chunks) == 0 {
		return emptyResult(input.URL, msgNoChunks, domain.OutcomeNoChunks), nil
	}

	embeddings, err := s.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	records := make([]domain.IndexedRecord, len(chunks))
	for i, c := range chunks {
		records[i] = c.Record(embeddings[i], page.Title)
	}

	if err := s.upsert(ctx, records); err != nil {
		return nil, err
	}

	s.archive(ctx, input.URL, text)
	s.recordSource(ctx, input, page.Title, len(chunks))

	s.logger.InfoContext(ctx, "indexed page",
		"url", input.URL,
		"chunks", len(chunks),
		"collection", s.collection,
	)

	return &domain.IndexResult{
		Success:     true,
		URL:         input.URL,
		ChunksAdded: len(chunks),
		Message:     fmt.Sprintf("Successfully indexed %d chunks from %s", len(chunks), input.URL),
		Outcome:     domain.OutcomeIndexed,
	}, nil
}

func (s *IndexingService) fetch(ctx context.Context, input CrawlInput) (*domain.Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "fetch", telemetry.SpanAttributes{SourceURL: input.URL})
	defer span.End()

	start := time.Now()
	page, err := s.fetcher.Fetch(ctx, domain.FetchRequest{URL: input.URL, MaxDepth: input.MaxDepth})
	s.recorder.ObserveStage("fetch", time.Since(start))
	if err != nil {
		return nil, domain.NewFetchError(input.URL, err)
	}
	if page == nil {
		page = &domain.Page{URL: input.URL}
	}
	return page, nil
}

func (s *IndexingService) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	ctx, span := telemetry.StartSpan(ctx, "embed", telemetry.SpanAttributes{Count: len(chunks)})
	defer span.End()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	embeddings, err := s.embedder.GenerateEmbeddings(ctx, texts)
	s.recorder.ObserveStage("embed", time.Since(start))
	if err != nil {
		return nil, embeddingError(err)
	}
	if len(embeddings) != len(texts) {
		return nil, domain.NewEmbeddingError(fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(texts)))
	}
	return embeddings, nil
}

func (s *IndexingService) upsert(ctx context.Context, records []domain.IndexedRecord) error {
	ctx, span := telemetry.StartSpan(ctx, "upsert", telemetry.SpanAttributes{
		Collection: s.collection,
		Count:      len(records),
	})
	defer span.End()

	start := time.Now()
	defer func() { s.recorder.ObserveStage("upsert", time.Since(start)) }()

	coll, err := s.store.GetOrCreateCollection(ctx, s.collection)
	if err != nil {
		return domain.NewStoreError("get collection", err)
	}
	if err := s.store.Upsert(ctx, coll, records); err != nil {
		return domain.NewStoreError("upsert", err)
	}
	return nil
}

// archive stores the page text when a snapshot store is configured.
// Failures are logged and do not abort indexing.
func (s *IndexingService) archive(ctx context.Context, url, text string) {
	if s.snapshots == nil {
		return
	}
	key, err := s.snapshots.PutSnapshot(ctx, url, text)
	if err != nil {
		s.logger.WarnContext(ctx, "snapshot upload failed", "url", url, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "snapshot stored", "url", url, "key", key)
}

func (s *IndexingService) recordSource(ctx context.Context, input CrawlInput, title string, chunks int) {
	if s.sources == nil {
		return
	}
	src := &domain.CrawlSource{
		Collection:    s.collection,
		URL:           input.URL,
		Title:         title,
		ChunkSize:     input.ChunkSize,
		MaxDepth:      input.MaxDepth,
		Chunks:        chunks,
		LastIndexedAt: s.now().UTC(),
	}
	if err := s.sources.RecordSource(ctx, src); err != nil {
		s.logger.WarnContext(ctx, "failed to record crawl source", "url", input.URL, "error", err)
	}
}

// Reindex re-runs the pipeline for a registered source with its recorded
// settings. Chunk ids are stable, so unchanged pages overwrite in place.
func (s *IndexingService) Reindex(ctx context.Context, src *domain.CrawlSource) (*domain.IndexResult, error) {
	return s.CrawlAndIndex(ctx, CrawlInput{
		URL:       src.URL,
		MaxDepth:  src.MaxDepth,
		ChunkSize: src.ChunkSize,
	})
}

func emptyResult(url, message string, outcome domain.IndexOutcome) *domain.IndexResult {
	return &domain.IndexResult{
		Success:     false,
		URL:         url,
		ChunksAdded: 0,
		Message:     message,
		Outcome:     outcome,
	}
}

// embeddingError keeps configuration errors intact and wraps the rest.
func embeddingError(err error) error {
	if domain.CodeOf(err) == domain.ErrCodeNotConfigured {
		return err
	}
	return domain.NewEmbeddingError(err)
}
