package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docstream-platform/models"
)

// JobRepository persists ingestion jobs. The database row is the
// authoritative copy of job state; no in-process caching.
type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, tenant_id, version_id, source_type, status, stage, attempts, max_attempts,
	last_error, error_code, metrics, created_at, started_at, completed_at, next_retry_at`

func scanJob(row pgx.Row) (*models.IngestionJob, error) {
	var j models.IngestionJob
	err := row.Scan(&j.ID, &j.TenantID, &j.VersionID, &j.SourceType, &j.Status, &j.Stage,
		&j.Attempts, &j.MaxAttempts, &j.LastError, &j.ErrorCode, &j.Metrics,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.NextRetryAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job failed: %w", err)
	}
	return &j, nil
}

// Get loads a job by id.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.IngestionJob, error) {
	return scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, id))
}

// GetForTenant loads a job scoped to the tenant, for the status API.
func (r *JobRepository) GetForTenant(ctx context.Context, tenantID, id string) (*models.IngestionJob, error) {
	return scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID))
}

// GetActiveByVersion returns the non-terminal job for a version, if any.
func (r *JobRepository) GetActiveByVersion(ctx context.Context, versionID string) (*models.IngestionJob, error) {
	return scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM ingestion_jobs
		 WHERE version_id = $1 AND status NOT IN ('done', 'failed', 'cancelled')
		 ORDER BY created_at DESC LIMIT 1`, versionID))
}

// Update writes back every mutable field of a job row.
func (r *JobRepository) Update(ctx context.Context, j *models.IngestionJob) error {
	return updateJob(ctx, r.pool, j)
}

// UpdateTx writes back a job inside an existing transaction, used when the
// job change must commit together with an outbox event.
func (r *JobRepository) UpdateTx(ctx context.Context, tx pgx.Tx, j *models.IngestionJob) error {
	return updateJob(ctx, tx, j)
}

func updateJob(ctx context.Context, db execer, j *models.IngestionJob) error {
	tag, err := db.Exec(ctx,
		`UPDATE ingestion_jobs
		 SET status = $2, stage = $3, attempts = $4, last_error = $5, error_code = $6,
		     metrics = $7, started_at = $8, completed_at = $9, next_retry_at = $10
		 WHERE id = $1`,
		j.ID, j.Status, j.Stage, j.Attempts, j.LastError, j.ErrorCode,
		j.Metrics, j.StartedAt, j.CompletedAt, j.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("update job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailNonTerminalByDocument ends every non-terminal job of a document with
// the document_deleted code. Used by the delete path.
func (r *JobRepository) FailNonTerminalByDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ingestion_jobs
		 SET status = 'failed', error_code = $2, last_error = 'document deleted', completed_at = now()
		 WHERE status NOT IN ('done', 'failed', 'cancelled')
		   AND version_id IN (SELECT id FROM document_versions WHERE document_id = $1)`,
		documentID, string(models.ErrCodeDocumentDeleted),
	)
	if err != nil {
		return 0, fmt.Errorf("fail jobs for document failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
