package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "graphreader/internal/pkg/errors"
	"graphreader/internal/platform/models"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt == 0 {
		key.CreatedAt = time.Now().Unix()
	}
	if key.Status == "" {
		key.Status = models.APIKeyStatusActive
	}

	query := `
		INSERT INTO api_keys (id, user_id, service_id, name, key_hash, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, key.ID, key.UserID, key.ServiceID, key.Name, key.KeyHash, key.Status, key.CreatedAt, key.ExpiresAt)
	return err
}

// GetByHash returns the key of serviceID whose hash matches, whatever its
// status. Foreign-service keys are reported as not found.
func (r *APIKeyRepository) GetByHash(ctx context.Context, hash, serviceID string) (*models.APIKey, error) {
	query := `
		SELECT id, user_id, service_id, name, status, created_at, expires_at, last_used_at
		FROM api_keys WHERE key_hash = ? AND service_id = ?
	`
	k, err := scanAPIKey(r.db.QueryRowContext(ctx, query, hash, serviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	k.KeyHash = hash
	return k, nil
}

// ListByUser returns every key userID holds for serviceID, oldest first.
func (r *APIKeyRepository) ListByUser(ctx context.Context, userID, serviceID string) ([]*models.APIKey, error) {
	query := `
		SELECT id, user_id, service_id, name, status, created_at, expires_at, last_used_at
		FROM api_keys WHERE user_id = ? AND service_id = ?
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, userID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []*models.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke marks a key revoked. Keys owned by another user or service are
// reported as not found.
func (r *APIKeyRepository) Revoke(ctx context.Context, id, userID, serviceID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET status = ? WHERE id = ? AND user_id = ? AND service_id = ?`,
		models.APIKeyStatusRevoked, id, userID, serviceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var k models.APIKey
	var name sql.NullString
	var expiresAt, lastUsedAt sql.NullInt64

	if err := row.Scan(&k.ID, &k.UserID, &k.ServiceID, &name, &k.Status, &k.CreatedAt, &expiresAt, &lastUsedAt); err != nil {
		return nil, err
	}

	if name.Valid {
		k.Name = &name.String
	}
	if expiresAt.Valid {
		k.ExpiresAt = new(int64)
		*k.ExpiresAt = expiresAt.Int64
	}
	if lastUsedAt.Valid {
		k.LastUsedAt = new(int64)
		*k.LastUsedAt = lastUsedAt.Int64
	}
	return &k, nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, at.Unix(), id)
	return err
}

// ExpireBefore flips active keys whose expiry has passed to the expired status
// and returns how many rows changed.
func (r *APIKeyRepository) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET status = ? WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		models.APIKeyStatusExpired, models.APIKeyStatusActive, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
