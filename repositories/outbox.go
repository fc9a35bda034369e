package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"docstream-platform/models"
)

// OutboxRepository is the durable FIFO-ish work queue. Rows are leased with
// a visibility timeout: a row whose leased_until lies in the future is hidden
// from other pollers, and becomes visible again when the lease expires.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Enqueue inserts an event owed for delivery.
func (r *OutboxRepository) Enqueue(ctx context.Context, ev *models.OutboxEvent) error {
	return enqueue(ctx, r.pool, ev)
}

// EnqueueTx inserts an event inside an existing transaction so producers can
// commit the event together with the state change that caused it.
func (r *OutboxRepository) EnqueueTx(ctx context.Context, tx pgx.Tx, ev *models.OutboxEvent) error {
	return enqueue(ctx, tx, ev)
}

// execer covers both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func enqueue(ctx context.Context, db execer, ev *models.OutboxEvent) error {
	_, err := db.Exec(ctx,
		`INSERT INTO event_outbox (id, tenant_id, event_type, payload, attempts, max_attempts, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6)`,
		ev.ID, ev.TenantID, ev.EventType, ev.Payload, ev.MaxAttempts, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue outbox event failed: %w", err)
	}
	return nil
}

// Lease atomically claims up to limit due events, hiding them from other
// workers until the visibility timeout elapses. Attempts are incremented on
// every lease; poison rows (attempts >= max) are never returned.
func (r *OutboxRepository) Lease(ctx context.Context, limit int, visibility time.Duration) ([]models.OutboxEvent, error) {
	leasedUntil := time.Now().Add(visibility)
	rows, err := r.pool.Query(ctx,
		`UPDATE event_outbox
		 SET leased_until = $1, attempts = attempts + 1
		 WHERE id IN (
		     SELECT id FROM event_outbox
		     WHERE processed_at IS NULL
		       AND attempts < max_attempts
		       AND (next_retry_at IS NULL OR next_retry_at <= now())
		       AND (leased_until IS NULL OR leased_until <= now())
		     ORDER BY created_at
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, tenant_id, event_type, payload, attempts, max_attempts, last_error,
		           created_at, processed_at, next_retry_at, leased_until`,
		leasedUntil, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("lease outbox events failed: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var ev models.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.EventType, &ev.Payload, &ev.Attempts, &ev.MaxAttempts,
			&ev.LastError, &ev.CreatedAt, &ev.ProcessedAt, &ev.NextRetryAt, &ev.LeasedUntil); err != nil {
			return nil, fmt.Errorf("scan outbox event failed: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// MarkProcessed commits an event. The row is retained for audit and never
// polled again.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE event_outbox SET processed_at = now(), leased_until = NULL
		 WHERE id = $1 AND processed_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox processed failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Release returns a leased event to the queue after a failed delivery,
// recording the error and when it should next become visible.
func (r *OutboxRepository) Release(ctx context.Context, id, lastError string, nextRetryAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE event_outbox SET leased_until = NULL, last_error = $2, next_retry_at = $3
		 WHERE id = $1 AND processed_at IS NULL`,
		id, lastError, nextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("release outbox event failed: %w", err)
	}
	return nil
}

// PendingCount reports rows still owed, for operational visibility.
func (r *OutboxRepository) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_outbox WHERE processed_at IS NULL AND attempts < max_attempts`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox failed: %w", err)
	}
	return n, nil
}
