package repositories

import (
	"context"
	"database/sql"
	"errors"

	"graphreader/internal/platform/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, created_at)
		VALUES (?, ?, ?)
	`, user.ID, user.Email, user.CreatedAt)
	return err
}

// Upsert records the user, refreshing the email of a known id.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email
	`, user.ID, user.Email, user.CreatedAt)
	return err
}

// GetByID returns nil, nil when the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, created_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
