package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/telemetry"
)

// DefaultRefreshBatchSize caps how many sources one tick re-indexes.
const DefaultRefreshBatchSize = 10

// SourceLister returns sources whose last index is older than a cutoff.
type SourceLister interface {
	ListStaleSources(ctx context.Context, collection string, indexedBefore time.Time, limit int) ([]*domain.CrawlSource, error)
}

// Reindexer re-runs the crawl pipeline for a recorded source.
type Reindexer interface {
	Reindex(ctx context.Context, src *domain.CrawlSource) (*domain.IndexResult, error)
}

// RefreshWorker re-indexes crawl sources that have not been indexed within
// maxAge. Failures are logged per source and retried on a later tick.
type RefreshWorker struct {
	sources    SourceLister
	indexer    Reindexer
	collection string
	maxAge     time.Duration
	batchSize  int
	logger     *slog.Logger
	now        func() time.Time
}

// NewRefreshWorker creates a RefreshWorker for collection.
func NewRefreshWorker(sources SourceLister, indexer Reindexer, collection string, maxAge time.Duration, logger *slog.Logger) *RefreshWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshWorker{
		sources:    sources,
		indexer:    indexer,
		collection: collection,
		maxAge:     maxAge,
		batchSize:  DefaultRefreshBatchSize,
		logger:     logger,
		now:        time.Now,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *RefreshWorker) ProcessJobs(ctx context.Context) error {
	cutoff := w.now().UTC().Add(-w.maxAge)
	stale, err := w.sources.ListStaleSources(ctx, w.collection, cutoff, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list stale sources: %w", err)
	}

	if len(stale) == 0 {
		return nil
	}

	w.logger.Info("refreshing stale sources", "count", len(stale), "collection", w.collection)

	ctx, tx := telemetry.StartTransaction(ctx, "refresh "+w.collection, "worker.refresh")
	defer tx.End()

	for _, src := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.refresh(ctx, src)
	}

	return nil
}

func (w *RefreshWorker) refresh(ctx context.Context, src *domain.CrawlSource) {
	telemetry.AddBreadcrumb(ctx, "refresh", src.URL)

	result, err := w.indexer.Reindex(ctx, src)
	if err != nil {
		w.logger.Error("refresh failed", "url", src.URL, "error", err)
		telemetry.CaptureError(ctx, err)
		return
	}
	if !result.Success {
		w.logger.Warn("refresh produced no chunks", "url", src.URL, "message", result.Message)
		return
	}
	w.logger.Info("source refreshed", "url", src.URL, "chunks", result.ChunksAdded)
}
