package service

import (
	"context"
	"log/slog"

	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/telemetry"
)

// CollectionService reports on and administers the configured collection.
type CollectionService struct {
	store      VectorStore
	collection string
	sources    SourceRegistry
	logger     *slog.Logger
}

// NewCollectionService creates a CollectionService. sources may be nil when
// the store backend keeps no registry.
func NewCollectionService(store VectorStore, collection string, sources SourceRegistry, logger *slog.Logger) *CollectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionService{
		store:      store,
		collection: collection,
		sources:    sources,
		logger:     logger,
	}
}

func (s *CollectionService) CollectionName() string {
	return s.collection
}

// Health reaches the store by getting or creating the collection and counting
// it, after a heartbeat when the store has one. Failures are reported in the
// returned report, never as an error.
func (s *CollectionService) Health(ctx context.Context) domain.HealthReport {
	if hb, ok := s.store.(Heartbeater); ok {
		if err := hb.Heartbeat(ctx); err != nil {
			s.logger.WarnContext(ctx, "store heartbeat failed", "error", err)
			return domain.HealthReport{Status: domain.HealthStatusUnhealthy, Error: err.Error()}
		}
	}

	coll, err := s.store.GetOrCreateCollection(ctx, s.collection)
	if err != nil {
		s.logger.WarnContext(ctx, "health check failed", "error", err)
		return domain.HealthReport{Status: domain.HealthStatusUnhealthy, Error: err.Error()}
	}

	count, err := s.store.Count(ctx, coll)
	if err != nil {
		s.logger.WarnContext(ctx, "health check failed", "error", err)
		return domain.HealthReport{Status: domain.HealthStatusUnhealthy, Error: err.Error()}
	}

	return domain.HealthReport{
		Status:        domain.HealthStatusHealthy,
		StoreEndpoint: s.store.Endpoint(),
		Collection:    s.collection,
		Count:         count,
	}
}

func (s *CollectionService) Stats(ctx context.Context) (*domain.CollectionStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "CollectionService.Stats", telemetry.SpanAttributes{
		Collection: s.collection,
		Operation:  "stats",
	})
	defer span.End()

	coll, err := s.store.GetOrCreateCollection(ctx, s.collection)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStoreError("get collection", err)
	}

	count, err := s.store.Count(ctx, coll)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStoreError("count", err)
	}

	return &domain.CollectionStats{
		CollectionName: s.collection,
		TotalDocuments: count,
		StoreEndpoint:  s.store.Endpoint(),
	}, nil
}

// DeleteCollection drops the whole collection with every record in it.
func (s *CollectionService) DeleteCollection(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "CollectionService.DeleteCollection", telemetry.SpanAttributes{
		Collection: s.collection,
		Operation:  "delete",
	})
	defer span.End()

	if err := s.store.DeleteCollection(ctx, s.collection); err != nil {
		span.SetError(err)
		return domain.NewStoreError("delete collection", err)
	}

	s.logger.InfoContext(ctx, "collection deleted", "collection", s.collection)
	return nil
}

// Sources lists the crawl sources recorded for the collection.
func (s *CollectionService) Sources(ctx context.Context) ([]*domain.CrawlSource, error) {
	if s.sources == nil {
		return nil, domain.ErrSourcesNotConfigured
	}

	sources, err := s.sources.ListSources(ctx, s.collection)
	if err != nil {
		return nil, domain.NewStoreError("list sources", err)
	}
	if sources == nil {
		sources = []*domain.CrawlSource{}
	}
	return sources, nil
}
