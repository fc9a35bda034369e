package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docstream-platform/internal/cryptobox"
)

// CredentialRepository stores per-tenant object-store credential overrides,
// encrypted at rest.
type CredentialRepository struct {
	pool *pgxpool.Pool
	box  *cryptobox.Box
}

func NewCredentialRepository(pool *pgxpool.Pool, box *cryptobox.Box) *CredentialRepository {
	return &CredentialRepository{pool: pool, box: box}
}

// Save encrypts and upserts a tenant's credential blob.
func (r *CredentialRepository) Save(ctx context.Context, tenantID string, plaintext []byte) error {
	sealed, err := r.box.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credentials failed: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO tenant_credentials (tenant_id, encrypted, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (tenant_id) DO UPDATE SET encrypted = EXCLUDED.encrypted, updated_at = now()`,
		tenantID, sealed,
	)
	if err != nil {
		return fmt.Errorf("save credentials failed: %w", err)
	}
	return nil
}

// Get decrypts a tenant's credential blob.
func (r *CredentialRepository) Get(ctx context.Context, tenantID string) ([]byte, error) {
	var sealed string
	err := r.pool.QueryRow(ctx,
		`SELECT encrypted FROM tenant_credentials WHERE tenant_id = $1`,
		tenantID,
	).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials failed: %w", err)
	}
	return r.box.Decrypt(sealed)
}
