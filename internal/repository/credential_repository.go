package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rafl-be/internal/domain"
	"rafl-be/pkg/database"
)

const credentialColumns = `id::text, store_id::text, name, key_prefix, key_hash, is_active, last_used_at, created_at`

type CredentialRepo struct {
	db *database.PostgresDB
}

func NewCredentialRepository(db *database.PostgresDB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// GetByPrefix gets a credential by its key prefix
func (r *CredentialRepo) GetByPrefix(ctx context.Context, prefix string) (*domain.APICredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM api_keys WHERE key_prefix = $1`

	cred, err := scanCredential(r.db.Pool.QueryRow(ctx, query, prefix))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("get credential", err)
	}
	return cred, nil
}

// TouchLastUsed updates last_used_at
func (r *CredentialRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch credential: %w", err)
	}
	return nil
}

// Create inserts a new credential. A prefix collision surfaces as a unique violation.
func (r *CredentialRepo) Create(ctx context.Context, cred *domain.APICredential) error {
	query := `
		INSERT INTO api_keys (store_id, name, key_prefix, key_hash, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id::text, is_active, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		cred.StoreID,
		cred.Label,
		cred.KeyPrefix,
		cred.KeyHash,
	).Scan(&cred.ID, &cred.IsActive, &cred.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// ListByStore lists a store's credentials
func (r *CredentialRepo) ListByStore(ctx context.Context, storeID string) ([]*domain.APICredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM api_keys WHERE store_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, storeID)
	if err != nil {
		return nil, domain.NewStorageError("list credentials", err)
	}
	defer rows.Close()

	creds := make([]*domain.APICredential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan credential", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list credentials", err)
	}
	return creds, nil
}

// Deactivate marks a credential inactive
func (r *CredentialRepo) Deactivate(ctx context.Context, storeID, id string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE id = $1 AND store_id = $2`, id, storeID)
	if err != nil {
		return false, domain.NewStorageError("deactivate credential", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanCredential(row pgx.Row) (*domain.APICredential, error) {
	var c domain.APICredential
	err := row.Scan(
		&c.ID,
		&c.StoreID,
		&c.Label,
		&c.KeyPrefix,
		&c.KeyHash,
		&c.IsActive,
		&c.LastUsedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	return &c, nil
}
