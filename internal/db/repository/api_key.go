package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quarry/internal/domain"
)

// Compile-time check.
var _ domain.APIKeyRepository = (*APIKeyRepo)(nil)

// APIKeyRepo implements domain.APIKeyRepository using SQLite.
type APIKeyRepo struct {
	db *sql.DB
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo {
	return &APIKeyRepo{db: db}
}

// Create inserts a new API key record. Only the hash of the raw key is stored.
func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) (*domain.APIKey, error) {
	created := *k
	if created.ID == "" {
		created.ID = domain.NewID()
	}
	created.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, principal_name, name, key_prefix, key_hash, is_admin, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.PrincipalName, created.Name, created.KeyPrefix,
		created.KeyHash, created.IsAdmin, created.ExpiresAt, created.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &created, nil
}

// GetByHash returns the API key record matching a SHA-256 hash.
func (r *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, principal_name, name, key_prefix, key_hash, is_admin, expires_at, created_at
		FROM api_keys WHERE key_hash = ?`, keyHash)
	k, err := scanAPIKey(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return k, nil
}

// List returns a page of API keys ordered by creation time, newest first.
func (r *APIKeyRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.APIKey, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM api_keys`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count api keys: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, principal_name, name, key_prefix, key_hash, is_admin, expires_at, created_at
		FROM api_keys ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, 0, err
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return keys, total, nil
}

// Delete removes an API key by ID.
func (r *APIKeyRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("api key %s not found", id)
	}
	return nil
}

func scanAPIKey(row rowScanner) (*domain.APIKey, error) {
	var k domain.APIKey
	var expires sql.NullTime
	if err := row.Scan(&k.ID, &k.PrincipalName, &k.Name, &k.KeyPrefix,
		&k.KeyHash, &k.IsAdmin, &expires, &k.CreatedAt); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		k.ExpiresAt = &t
	}
	return &k, nil
}
