package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

// SourceRepository records which URLs were indexed into each collection.
type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

// RecordSource inserts or refreshes the source row for src.URL.
func (r *SourceRepository) RecordSource(ctx context.Context, src *domain.CrawlSource) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO crawl_sources (collection_id, url, title, chunk_size, max_depth, chunks, last_indexed_at)
		 SELECT c.id, $2, $3, $4, $5, $6, $7 FROM collections c WHERE c.name = $1
		 ON CONFLICT (collection_id, url) DO UPDATE SET
			title = EXCLUDED.title,
			chunk_size = EXCLUDED.chunk_size,
			max_depth = EXCLUDED.max_depth,
			chunks = EXCLUDED.chunks,
			last_indexed_at = EXCLUDED.last_indexed_at`,
		src.Collection, src.URL, src.Title, src.ChunkSize, src.MaxDepth, src.Chunks, src.LastIndexedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCollectionNotFound
	}
	return nil
}

func (r *SourceRepository) ListSources(ctx context.Context, collection string) ([]*domain.CrawlSource, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.name, s.url, s.title, s.chunk_size, s.max_depth, s.chunks, s.last_indexed_at
		 FROM crawl_sources s
		 JOIN collections c ON c.id = s.collection_id
		 WHERE c.name = $1
		 ORDER BY s.url`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

// ListStaleSources returns up to limit sources last indexed before
// indexedBefore, oldest first.
func (r *SourceRepository) ListStaleSources(ctx context.Context, collection string, indexedBefore time.Time, limit int) ([]*domain.CrawlSource, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.name, s.url, s.title, s.chunk_size, s.max_depth, s.chunks, s.last_indexed_at
		 FROM crawl_sources s
		 JOIN collections c ON c.id = s.collection_id
		 WHERE c.name = $1 AND s.last_indexed_at < $2
		 ORDER BY s.last_indexed_at ASC
		 LIMIT $3`,
		collection, indexedBefore, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

func scanSourceRows(rows pgx.Rows) ([]*domain.CrawlSource, error) {
	var sources []*domain.CrawlSource
	for rows.Next() {
		var s domain.CrawlSource
		if err := rows.Scan(&s.Collection, &s.URL, &s.Title, &s.ChunkSize, &s.MaxDepth, &s.Chunks, &s.LastIndexedAt); err != nil {
			return nil, err
		}
		sources = append(sources, &s)
	}
	return sources, rows.Err()
}
