//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/testutil"
)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func record(id string, embedding ...float32) domain.IndexedRecord {
	return domain.IndexedRecord{
		ID:        id,
		Embedding: embedding,
		Text:      "text of " + id,
		Metadata:  map[string]any{domain.MetaSourceURL: "https://example.com/"},
	}
}

func TestCollectionRepository_GetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(setupPool(ctx, t), "postgres://db/crawlvec")

	first, err := repo.GetOrCreateCollection(ctx, "crawl_docs")
	require.NoError(t, err)
	second, err := repo.GetOrCreateCollection(ctx, "crawl_docs")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "crawl_docs", second.Name)
	assert.Equal(t, domain.CollectionDescription, second.Metadata["description"])
	assert.Equal(t, "postgres://db/crawlvec", repo.Endpoint())
}

func TestCollectionRepository_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(setupPool(ctx, t), "")

	coll, err := repo.GetOrCreateCollection(ctx, "crawl_docs")
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, coll, []domain.IndexedRecord{
		record("u_chunk_0", 1, 0, 0),
		record("u_chunk_1", 0, 1, 0),
	}))
	count, err := repo.Count(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	updated := record("u_chunk_0", 1, 0, 0)
	updated.Text = "replaced"
	require.NoError(t, repo.Upsert(ctx, coll, []domain.IndexedRecord{updated}))

	count, err = repo.Count(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	result, err := repo.Query(ctx, coll, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "replaced", result.Documents[0])
}

func TestCollectionRepository_QueryOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(setupPool(ctx, t), "")

	coll, err := repo.GetOrCreateCollection(ctx, "crawl_docs")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, coll, []domain.IndexedRecord{
		record("far", 0, 0, 1),
		record("near", 1, 0, 0),
		record("mid", 1, 1, 0),
	}))

	result, err := repo.Query(ctx, coll, []float32{1, 0, 0}, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"near", "mid"}, result.IDs)
	require.Len(t, result.Distances, 2)
	assert.InDelta(t, 0.0, result.Distances[0], 1e-6)
	assert.Less(t, result.Distances[0], result.Distances[1])
	assert.Equal(t, "https://example.com/", result.Metadatas[0][domain.MetaSourceURL])
}

func TestCollectionRepository_QueryEmptyCollection(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(setupPool(ctx, t), "")

	coll, err := repo.GetOrCreateCollection(ctx, "crawl_docs")
	require.NoError(t, err)

	result, err := repo.Query(ctx, coll, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, result.IDs)
}

func TestCollectionRepository_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(setupPool(ctx, t), "")

	a, err := repo.GetOrCreateCollection(ctx, "a")
	require.NoError(t, err)
	b, err := repo.GetOrCreateCollection(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, a, []domain.IndexedRecord{record("x", 1, 0)}))

	count, err := repo.Count(ctx, b)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCollectionRepository_DeleteCollection(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewCollectionRepository(pool, "")
	sources := NewSourceRepository(pool)

	coll, err := repo.GetOrCreateCollection(ctx, "crawl_docs")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, coll, []domain.IndexedRecord{record("x", 1, 0)}))
	require.NoError(t, sources.RecordSource(ctx, &domain.CrawlSource{
		Collection: "crawl_docs", URL: "https://example.com/", ChunkSize: 1000, Chunks: 1,
		LastIndexedAt: time.Now().UTC(),
	}))

	require.NoError(t, repo.DeleteCollection(ctx, "crawl_docs"))

	listed, err := sources.ListSources(ctx, "crawl_docs")
	require.NoError(t, err)
	assert.Empty(t, listed)

	err = repo.DeleteCollection(ctx, "crawl_docs")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}
