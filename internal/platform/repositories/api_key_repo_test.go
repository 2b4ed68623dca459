package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	apperrors "graphreader/internal/pkg/errors"
	"graphreader/internal/platform/database"
	"graphreader/internal/platform/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestAPIKeyRepository_CreateAndLookup(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAPIKeyRepository(db)
	ctx := context.Background()

	name := "ci"
	expires := time.Now().Add(time.Hour).Unix()
	key := &models.APIKey{
		UserID:    "u1",
		ServiceID: "graph_reader_api",
		Name:      &name,
		KeyHash:   "hash-1",
		ExpiresAt: &expires,
	}
	if err := repo.Create(ctx, key); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}
	if key.ID == "" || key.Status != models.APIKeyStatusActive || key.CreatedAt == 0 {
		t.Errorf("Create did not fill defaults: %+v", key)
	}

	fetched, err := repo.GetByHash(ctx, "hash-1", "graph_reader_api")
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if fetched.ID != key.ID || fetched.UserID != "u1" {
		t.Errorf("Expected key %s of u1, got %s of %s", key.ID, fetched.ID, fetched.UserID)
	}
	if fetched.Name == nil || *fetched.Name != "ci" {
		t.Errorf("Expected name ci, got %v", fetched.Name)
	}
	if fetched.ExpiresAt == nil || *fetched.ExpiresAt != expires {
		t.Errorf("Expected expires_at %d, got %v", expires, fetched.ExpiresAt)
	}
	if fetched.LastUsedAt != nil {
		t.Errorf("Expected no last_used_at, got %d", *fetched.LastUsedAt)
	}

	if _, err := repo.GetByHash(ctx, "hash-1", "other_service"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign service, got %v", err)
	}
	if _, err := repo.GetByHash(ctx, "unknown", "graph_reader_api"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown hash, got %v", err)
	}
}

func TestAPIKeyRepository_RevokeAndTouch(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAPIKeyRepository(db)
	ctx := context.Background()

	key := &models.APIKey{ID: "k1", UserID: "u1", ServiceID: "svc", KeyHash: "h1"}
	if err := repo.Create(ctx, key); err != nil {
		t.Fatal(err)
	}

	at := time.Unix(1700000000, 0)
	if err := repo.UpdateLastUsed(ctx, "k1", at); err != nil {
		t.Fatalf("UpdateLastUsed: %v", err)
	}
	fetched, err := repo.GetByHash(ctx, "h1", "svc")
	if err != nil {
		t.Fatal(err)
	}
	if fetched.LastUsedAt == nil || *fetched.LastUsedAt != at.Unix() {
		t.Errorf("Expected last_used_at %d, got %v", at.Unix(), fetched.LastUsedAt)
	}

	if err := repo.Revoke(ctx, "k1", "u2", "svc"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound revoking another user's key, got %v", err)
	}
	if err := repo.Revoke(ctx, "k1", "u1", "svc"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err := repo.GetByHash(ctx, "h1", "svc")
	if err != nil {
		t.Fatalf("Expected revoked key to remain visible, got %v", err)
	}
	if revoked.Status != models.APIKeyStatusRevoked {
		t.Errorf("Expected status revoked, got %s", revoked.Status)
	}
	if err := repo.Revoke(ctx, "missing", "u1", "svc"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown key, got %v", err)
	}
}

func TestAPIKeyRepository_ListByUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAPIKeyRepository(db)
	ctx := context.Background()

	for _, k := range []*models.APIKey{
		{ID: "b", UserID: "u1", ServiceID: "svc", KeyHash: "h1", CreatedAt: 2},
		{ID: "a", UserID: "u1", ServiceID: "svc", KeyHash: "h2", CreatedAt: 1},
		{ID: "c", UserID: "u2", ServiceID: "svc", KeyHash: "h3", CreatedAt: 1},
		{ID: "d", UserID: "u1", ServiceID: "other", KeyHash: "h4", CreatedAt: 1},
	} {
		if err := repo.Create(ctx, k); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := repo.ListByUser(ctx, "u1", "svc")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(keys) != 2 || keys[0].ID != "a" || keys[1].ID != "b" {
		t.Errorf("Expected keys [a b], got %d keys", len(keys))
	}

	none, err := repo.ListByUser(ctx, "nobody", "svc")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("Expected empty non-nil list, got %#v, %v", none, err)
	}
}

func TestAPIKeyRepository_ExpireBefore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAPIKeyRepository(db)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Minute).Unix()
	future := now.Add(time.Hour).Unix()
	for _, k := range []*models.APIKey{
		{ID: "lapsed", UserID: "u1", ServiceID: "svc", KeyHash: "h1", ExpiresAt: &past},
		{ID: "live", UserID: "u1", ServiceID: "svc", KeyHash: "h2", ExpiresAt: &future},
		{ID: "forever", UserID: "u1", ServiceID: "svc", KeyHash: "h3"},
		{ID: "revoked", UserID: "u1", ServiceID: "svc", KeyHash: "h4", ExpiresAt: &past, Status: models.APIKeyStatusRevoked},
	} {
		if err := repo.Create(ctx, k); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.ExpireBefore(ctx, now)
	if err != nil {
		t.Fatalf("ExpireBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 expired key, got %d", n)
	}

	var status string
	db.QueryRow(`SELECT status FROM api_keys WHERE id = 'lapsed'`).Scan(&status)
	if status != models.APIKeyStatusExpired {
		t.Errorf("Expected lapsed key to be expired, got %s", status)
	}
	db.QueryRow(`SELECT status FROM api_keys WHERE id = 'revoked'`).Scan(&status)
	if status != models.APIKeyStatusRevoked {
		t.Errorf("Expected revoked key to stay revoked, got %s", status)
	}
}

func TestAPIKeyRepository_LookupError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM api_keys WHERE key_hash = \\? AND service_id = \\?").
		WithArgs("h1", "svc").
		WillReturnError(sql.ErrConnDone)

	_, err = NewAPIKeyRepository(db).GetByHash(context.Background(), "h1", "svc")
	if err == nil || errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected a wrapped driver error, got %v", err)
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("Expected error to wrap sql.ErrConnDone, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &models.User{ID: "u1", Email: "alice@example.com", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	user, err := repo.GetByID(ctx, "u1")
	if err != nil || user == nil || user.Email != "alice@example.com" {
		t.Errorf("GetByID(u1) = %+v, %v", user, err)
	}

	if err := repo.Upsert(ctx, &models.User{ID: "u1", Email: "alice@new.example"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if user, _ := repo.GetByID(ctx, "u1"); user == nil || user.Email != "alice@new.example" {
		t.Errorf("Expected upsert to refresh email, got %+v", user)
	}

	missing, err := repo.GetByID(ctx, "ghost")
	if err != nil || missing != nil {
		t.Errorf("GetByID(ghost) = %+v, %v; want nil, nil", missing, err)
	}
}
