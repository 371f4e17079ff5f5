package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/telemetry"
)

// SearchService answers semantic similarity queries over the collection.
type SearchService struct {
	embedder   EmbeddingClient
	store      VectorStore
	collection string
	recorder   Recorder
}

func NewSearchService(embedder EmbeddingClient, store VectorStore, collection string, recorder Recorder) *SearchService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &SearchService{
		embedder:   embedder,
		store:      store,
		collection: collection,
		recorder:   recorder,
	}
}

// Search embeds the query and returns up to NResults hits, nearest first.
// An empty collection yields an empty, non-nil slice.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]domain.SearchHit, error) {
	input, err := validateSearchInput(input)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Collection: s.collection,
		Operation:  "search",
		Count:      input.NResults,
	})
	defer span.End()

	start := time.Now()
	embeddings, err := s.embedder.GenerateEmbeddings(ctx, []string{input.Query})
	s.recorder.ObserveStage("embed", time.Since(start))
	if err != nil {
		span.SetError(err)
		return nil, embeddingError(err)
	}
	if len(embeddings) != 1 {
		return nil, domain.NewEmbeddingError(fmt.Errorf("got %d embeddings for 1 query", len(embeddings)))
	}

	start = time.Now()
	coll, err := s.store.GetOrCreateCollection(ctx, s.collection)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStoreError("get collection", err)
	}
	result, err := s.store.Query(ctx, coll, embeddings[0], input.NResults)
	s.recorder.ObserveStage("query", time.Since(start))
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStoreError("query", err)
	}

	hits := zipHits(result)
	s.recorder.ObserveSearch(len(hits))
	return hits, nil
}

// zipHits reassembles the store's positionally correlated arrays into hits,
// keeping the store's order. Missing metadata or distance entries are left zero.
func zipHits(result *domain.QueryResult) []domain.SearchHit {
	if result == nil || len(result.Documents) == 0 {
		return []domain.SearchHit{}
	}

	hits := make([]domain.SearchHit, len(result.Documents))
	for i, doc := range result.Documents {
		hit := domain.SearchHit{Content: doc}
		if i < len(result.IDs) {
			hit.ID = result.IDs[i]
		}
		if i < len(result.Metadatas) {
			hit.Metadata = result.Metadatas[i]
		}
		if hit.Metadata == nil {
			hit.Metadata = map[string]any{}
		}
		if i < len(result.Distances) {
			hit.Distance = result.Distances[i]
		}
		hits[i] = hit
	}
	return hits
}
