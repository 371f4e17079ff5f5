package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

// CollectionRepository is a pgvector-backed vector store. Distances are
// cosine distances in [0, 2].
type CollectionRepository struct {
	db       dbtx
	endpoint string
}

// NewCollectionRepository creates a repository reporting endpoint as its
// store location. endpoint must not contain credentials.
func NewCollectionRepository(pool *pgxpool.Pool, endpoint string) *CollectionRepository {
	return &CollectionRepository{db: pool, endpoint: endpoint}
}

func (r *CollectionRepository) Endpoint() string {
	return r.endpoint
}

func (r *CollectionRepository) GetOrCreateCollection(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	var info domain.CollectionInfo
	err := r.db.QueryRow(ctx,
		`INSERT INTO collections (id, name, metadata)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, metadata`,
		uuid.NewString(), name, map[string]any{"description": domain.CollectionDescription},
	).Scan(&info.ID, &info.Name, &info.Metadata)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Upsert writes all records in one transaction; either every record is
// stored or none is.
func (r *CollectionRepository) Upsert(ctx context.Context, coll *domain.CollectionInfo, records []domain.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, rec := range records {
		metadata := rec.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(
			`INSERT INTO collection_records (collection_id, id, embedding, document, metadata, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())
			 ON CONFLICT (collection_id, id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				document = EXCLUDED.document,
				metadata = EXCLUDED.metadata,
				updated_at = EXCLUDED.updated_at`,
			coll.ID, rec.ID, pgvector.NewVector(rec.Embedding), rec.Text, metadata,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *CollectionRepository) Query(ctx context.Context, coll *domain.CollectionInfo, embedding []float32, n int) (*domain.QueryResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document, metadata, embedding <=> $2 AS distance
		 FROM collection_records
		 WHERE collection_id = $1
		 ORDER BY distance
		 LIMIT $3`,
		coll.ID, pgvector.NewVector(embedding), n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &domain.QueryResult{}
	for rows.Next() {
		var (
			id, document string
			metadata     map[string]any
			distance     float64
		)
		if err := rows.Scan(&id, &document, &metadata, &distance); err != nil {
			return nil, err
		}
		result.IDs = append(result.IDs, id)
		result.Documents = append(result.Documents, document)
		result.Metadatas = append(result.Metadatas, metadata)
		result.Distances = append(result.Distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *CollectionRepository) Count(ctx context.Context, coll *domain.CollectionInfo) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM collection_records WHERE collection_id = $1`,
		coll.ID,
	).Scan(&count)
	return count, err
}

// DeleteCollection removes the collection, its records and its crawl sources.
func (r *CollectionRepository) DeleteCollection(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM collections WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCollectionNotFound
	}
	return nil
}
