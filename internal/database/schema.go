package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema statements, applied in order. All time-bearing columns are
// timezone-aware; every ingestion entity carries the tenant id as a
// mandatory partition key.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id                UUID PRIMARY KEY,
		tenant_id         UUID NOT NULL,
		title             TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'active',
		uploader_id       UUID,
		labels            TEXT[] NOT NULL DEFAULT '{}',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at        TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents (tenant_id, status)`,

	`CREATE TABLE IF NOT EXISTS document_versions (
		id             UUID PRIMARY KEY,
		document_id    UUID NOT NULL REFERENCES documents(id),
		tenant_id      UUID NOT NULL,
		version_number INT  NOT NULL,
		object_key     TEXT NOT NULL,
		mime_type      TEXT NOT NULL,
		file_size      BIGINT NOT NULL DEFAULT 0,
		content_hash   TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (document_id, version_number)
	)`,

	`CREATE TABLE IF NOT EXISTS ingestion_jobs (
		id            UUID PRIMARY KEY,
		tenant_id     UUID NOT NULL,
		version_id    UUID NOT NULL REFERENCES document_versions(id),
		source_type   TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'queued',
		stage         TEXT NOT NULL DEFAULT 'pending_upload',
		attempts      INT  NOT NULL DEFAULT 0,
		max_attempts  INT  NOT NULL DEFAULT 3,
		last_error    TEXT NOT NULL DEFAULT '',
		error_code    TEXT NOT NULL DEFAULT '',
		metrics       JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at    TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ,
		next_retry_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_version ON ingestion_jobs (version_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS document_pages (
		id          UUID PRIMARY KEY,
		version_id  UUID NOT NULL REFERENCES document_versions(id),
		tenant_id   UUID NOT NULL,
		page_number INT  NOT NULL,
		text        TEXT NOT NULL,
		char_count  INT  NOT NULL,
		UNIQUE (version_id, page_number)
	)`,

	`CREATE TABLE IF NOT EXISTS document_chunks (
		id          UUID PRIMARY KEY,
		version_id  UUID NOT NULL REFERENCES document_versions(id),
		tenant_id   UUID NOT NULL,
		chunk_index INT  NOT NULL,
		text        TEXT NOT NULL,
		page_start  INT  NOT NULL,
		page_end    INT  NOT NULL,
		sentences   TEXT[] NOT NULL DEFAULT '{}',
		UNIQUE (version_id, chunk_index),
		CHECK (page_start <= page_end)
	)`,

	`CREATE TABLE IF NOT EXISTS chunk_embeddings (
		chunk_id  UUID PRIMARY KEY REFERENCES document_chunks(id) ON DELETE CASCADE,
		tenant_id UUID NOT NULL,
		vector    REAL[] NOT NULL,
		model     TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS event_outbox (
		id            UUID PRIMARY KEY,
		tenant_id     UUID NOT NULL,
		event_type    TEXT NOT NULL,
		payload       JSONB NOT NULL,
		attempts      INT  NOT NULL DEFAULT 0,
		max_attempts  INT  NOT NULL DEFAULT 5,
		last_error    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed_at  TIMESTAMPTZ,
		next_retry_at TIMESTAMPTZ,
		leased_until  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_dispatch ON event_outbox (created_at, attempts, processed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_tenant ON event_outbox (tenant_id)`,

	`CREATE TABLE IF NOT EXISTS tenant_credentials (
		tenant_id  UUID PRIMARY KEY,
		encrypted  TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// requiredTables drives verify-db.
var requiredTables = []string{
	"documents",
	"document_versions",
	"ingestion_jobs",
	"document_pages",
	"document_chunks",
	"chunk_embeddings",
	"event_outbox",
	"tenant_credentials",
}

// Migrate applies the schema. Statements are idempotent so reruns are safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w", err)
		}
	}
	return nil
}

// Verify checks that every required table exists and is queryable.
func Verify(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range requiredTables {
		var one int
		query := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table)
		rows, err := pool.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("table %s not available: %w", table, err)
		}
		for rows.Next() {
			_ = rows.Scan(&one)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("table %s not readable: %w", table, err)
		}
	}
	return nil
}
