package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docstream-platform/models"
)

var (
	// ErrNotFound is returned when an addressed entity does not exist within
	// the caller's tenant.
	ErrNotFound = errors.New("repositories: not found")

	// ErrDocumentFrozen is returned when mutating a deleted document.
	ErrDocumentFrozen = errors.New("repositories: document is deleted")
)

// DocumentRepository persists documents and their versions.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// CreateWithFirstVersion inserts a document, its first version, and the
// paired ingestion job in one transaction.
func (r *DocumentRepository) CreateWithFirstVersion(ctx context.Context, doc *models.Document, version *models.DocumentVersion, job *models.IngestionJob) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (id, tenant_id, title, original_filename, status, uploader_id, labels, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, $8, $8)`,
		doc.ID, doc.TenantID, doc.Title, doc.OriginalFilename, doc.Status, doc.UploaderID, doc.Labels, doc.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert document failed: %w", err)
	}

	if err := insertVersion(ctx, tx, version); err != nil {
		return err
	}
	if err := insertJob(ctx, tx, job); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AddVersion reserves the next version of an existing document together with
// its ingestion job. The version number is computed under a row lock on the
// document so concurrent uploads stay dense and monotonic; keyFor derives
// the object key from the assigned number.
func (r *DocumentRepository) AddVersion(ctx context.Context, tenantID string, version *models.DocumentVersion, job *models.IngestionJob, keyFor func(versionNumber int) string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM documents WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		version.DocumentID, tenantID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock document failed: %w", err)
	}
	if status != models.DocumentStatusActive {
		return 0, ErrDocumentFrozen
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id = $1`,
		version.DocumentID,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("next version number failed: %w", err)
	}
	version.VersionNumber = next
	if keyFor != nil {
		version.ObjectKey = keyFor(next)
	}

	if err := insertVersion(ctx, tx, version); err != nil {
		return 0, err
	}
	if err := insertJob(ctx, tx, job); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return next, nil
}

func insertVersion(ctx context.Context, tx pgx.Tx, v *models.DocumentVersion) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO document_versions (id, document_id, tenant_id, version_number, object_key, mime_type, file_size, content_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.DocumentID, v.TenantID, v.VersionNumber, v.ObjectKey, v.MimeType, v.FileSize, v.ContentHash, v.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert version failed: %w", err)
	}
	return nil
}

func insertJob(ctx context.Context, tx pgx.Tx, j *models.IngestionJob) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO ingestion_jobs (id, tenant_id, version_id, source_type, status, stage, attempts, max_attempts, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.TenantID, j.VersionID, j.SourceType, j.Status, j.Stage, j.Attempts, j.MaxAttempts, j.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert job failed: %w", err)
	}
	return nil
}

// GetDocument loads a document scoped to the tenant.
func (r *DocumentRepository) GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	var d models.Document
	var uploader *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, title, original_filename, status, uploader_id, labels, created_at, updated_at, deleted_at
		 FROM documents WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&d.ID, &d.TenantID, &d.Title, &d.OriginalFilename, &d.Status, &uploader, &d.Labels, &d.CreatedAt, &d.UpdatedAt, &d.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	if uploader != nil {
		d.UploaderID = *uploader
	}
	return &d, nil
}

// ListDocuments returns a page of the tenant's documents, newest first,
// together with the total count.
func (r *DocumentRepository) ListDocuments(ctx context.Context, tenantID string, limit, offset int) ([]models.Document, int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, title, original_filename, status, uploader_id, labels, created_at, updated_at, deleted_at
		 FROM documents WHERE tenant_id = $1 AND status <> 'deleted'
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents failed: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var uploader *string
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Title, &d.OriginalFilename, &d.Status, &uploader, &d.Labels, &d.CreatedAt, &d.UpdatedAt, &d.DeletedAt); err != nil {
			return nil, 0, fmt.Errorf("scan document failed: %w", err)
		}
		if uploader != nil {
			d.UploaderID = *uploader
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE tenant_id = $1 AND status <> 'deleted'`,
		tenantID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents failed: %w", err)
	}

	return docs, total, nil
}

// UpdateDocument patches mutable metadata. Deleted documents are frozen.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, tenantID, id string, title *string, labels []string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents
		 SET title = COALESCE($3, title),
		     labels = COALESCE($4, labels),
		     updated_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND status = 'active'`,
		id, tenantID, title, labels,
	)
	if err != nil {
		return fmt.Errorf("update document failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetDocument(ctx, tenantID, id); err != nil {
			return err
		}
		return ErrDocumentFrozen
	}
	return nil
}

// MarkDeletedPending flags a document for cleanup. Bytes are never rewritten
// in place; the cleanup pass handles object removal.
func (r *DocumentRepository) MarkDeletedPending(ctx context.Context, tenantID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET status = 'deleted_pending', deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND status = 'active'`,
		id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetDocument(ctx, tenantID, id); err != nil {
			return err
		}
		return ErrDocumentFrozen
	}
	return nil
}

// GetVersion loads a version scoped to the tenant.
func (r *DocumentRepository) GetVersion(ctx context.Context, tenantID, versionID string) (*models.DocumentVersion, error) {
	var v models.DocumentVersion
	err := r.pool.QueryRow(ctx,
		`SELECT id, document_id, tenant_id, version_number, object_key, mime_type, file_size, content_hash, created_at
		 FROM document_versions WHERE id = $1 AND tenant_id = $2`,
		versionID, tenantID,
	).Scan(&v.ID, &v.DocumentID, &v.TenantID, &v.VersionNumber, &v.ObjectKey, &v.MimeType, &v.FileSize, &v.ContentHash, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version failed: %w", err)
	}
	return &v, nil
}

// MaterializeVersion records byte length and content hash after upload.
func (r *DocumentRepository) MaterializeVersion(ctx context.Context, versionID string, fileSize int64, contentHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE document_versions SET file_size = $2, content_hash = $3 WHERE id = $1`,
		versionID, fileSize, contentHash,
	)
	if err != nil {
		return fmt.Errorf("materialize version failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
