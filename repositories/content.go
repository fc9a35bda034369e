package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"docstream-platform/models"
)

// ContentRepository persists parser, chunker, and embedding output. Each
// Replace* call is delete-then-insert in one transaction, so re-running a
// stage after partial failure is safe.
type ContentRepository struct {
	pool *pgxpool.Pool
}

func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

// ReplacePages atomically replaces all pages of a version.
func (r *ContentRepository) ReplacePages(ctx context.Context, tenantID, versionID string, pages []models.DocumentPage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_pages WHERE version_id = $1`, versionID); err != nil {
		return fmt.Errorf("clear pages failed: %w", err)
	}
	for i := range pages {
		p := &pages[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_pages (id, version_id, tenant_id, page_number, text, char_count)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, versionID, tenantID, p.PageNumber, p.Text, p.CharCount,
		); err != nil {
			return fmt.Errorf("insert page %d failed: %w", p.PageNumber, err)
		}
	}

	return tx.Commit(ctx)
}

// GetPages returns a version's pages in page order.
func (r *ContentRepository) GetPages(ctx context.Context, versionID string) ([]models.DocumentPage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, version_id, page_number, text, char_count
		 FROM document_pages WHERE version_id = $1 ORDER BY page_number`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get pages failed: %w", err)
	}
	defer rows.Close()

	var pages []models.DocumentPage
	for rows.Next() {
		var p models.DocumentPage
		if err := rows.Scan(&p.ID, &p.VersionID, &p.PageNumber, &p.Text, &p.CharCount); err != nil {
			return nil, fmt.Errorf("scan page failed: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ReplaceChunks atomically replaces all chunks of a version. Embeddings hang
// off chunks, so replacing chunks also clears stale embeddings via cascade.
func (r *ContentRepository) ReplaceChunks(ctx context.Context, tenantID, versionID string, chunks []models.DocumentChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE version_id = $1`, versionID); err != nil {
		return fmt.Errorf("clear chunks failed: %w", err)
	}
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, version_id, tenant_id, chunk_index, text, page_start, page_end, sentences)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, versionID, tenantID, c.ChunkIndex, c.Text, c.PageStart, c.PageEnd, c.Sentences,
		); err != nil {
			return fmt.Errorf("insert chunk %d failed: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

// GetChunks returns a version's chunks in index order.
func (r *ContentRepository) GetChunks(ctx context.Context, versionID string) ([]models.DocumentChunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, version_id, chunk_index, text, page_start, page_end, sentences
		 FROM document_chunks WHERE version_id = $1 ORDER BY chunk_index`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get chunks failed: %w", err)
	}
	defer rows.Close()

	var chunks []models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		if err := rows.Scan(&c.ID, &c.VersionID, &c.ChunkIndex, &c.Text, &c.PageStart, &c.PageEnd, &c.Sentences); err != nil {
			return nil, fmt.Errorf("scan chunk failed: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ReplaceEmbeddings atomically replaces the embeddings of a version's chunks,
// in chunk order.
func (r *ContentRepository) ReplaceEmbeddings(ctx context.Context, tenantID, versionID string, embeddings []models.ChunkEmbedding) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM chunk_embeddings
		 WHERE chunk_id IN (SELECT id FROM document_chunks WHERE version_id = $1)`,
		versionID,
	); err != nil {
		return fmt.Errorf("clear embeddings failed: %w", err)
	}
	for _, e := range embeddings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunk_embeddings (chunk_id, tenant_id, vector, model)
			 VALUES ($1, $2, $3, $4)`,
			e.ChunkID, tenantID, e.Vector, e.Model,
		); err != nil {
			return fmt.Errorf("insert embedding failed: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// CountEmbeddings returns how many embedding rows exist for a version.
func (r *ContentRepository) CountEmbeddings(ctx context.Context, versionID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunk_embeddings
		 WHERE chunk_id IN (SELECT id FROM document_chunks WHERE version_id = $1)`,
		versionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embeddings failed: %w", err)
	}
	return n, nil
}
