package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	apperrors "graphreader/internal/pkg/errors"
	"graphreader/internal/platform/identity"
	"graphreader/internal/platform/models"
)

// KeyPrefix marks keys issued by this service.
const KeyPrefix = "grk_"

var ErrInvalidExpiry = fmt.Errorf("%w: expires_at must be an RFC 3339 timestamp", apperrors.ErrValidation)

type KeyManagerStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	ListByUser(ctx context.Context, userID, serviceID string) ([]*models.APIKey, error)
	Revoke(ctx context.Context, id, userID, serviceID string) error
}

type UserRecorder interface {
	Upsert(ctx context.Context, user *models.User) error
}

// LocalKeyManager issues and revokes keys in the same store the
// LocalAPIKeyValidator reads. Its bodies have the identity service's shape so
// clients see no difference between the two modes.
type LocalKeyManager struct {
	keys      KeyManagerStore
	users     UserRecorder
	serviceID string
	now       func() time.Time
}

func NewLocalKeyManager(keys KeyManagerStore, users UserRecorder, serviceID string) *LocalKeyManager {
	return &LocalKeyManager{keys: keys, users: users, serviceID: serviceID, now: time.Now}
}

type keyView struct {
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	ServiceID  string  `json:"service_id"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	ExpiresAt  *string `json:"expires_at"`
	LastUsedAt *string `json:"last_used_at"`
}

type createdKeyView struct {
	keyView
	PlaintextKey string `json:"plaintext_key"`
}

func newKeyView(k *models.APIKey) keyView {
	return keyView{
		ID:         k.ID,
		Name:       k.Name,
		ServiceID:  k.ServiceID,
		Status:     k.Status,
		CreatedAt:  formatUnix(k.CreatedAt),
		ExpiresAt:  formatUnixPtr(k.ExpiresAt),
		LastUsedAt: formatUnixPtr(k.LastUsedAt),
	}
}

func (m *LocalKeyManager) CreateAPIKey(ctx context.Context, caller identity.Caller, req identity.CreateAPIKeyRequest) (json.RawMessage, error) {
	if caller.UserID == "" {
		return nil, ErrNotAuthenticated
	}

	now := m.now()
	key := &models.APIKey{
		ID:        uuid.New().String(),
		UserID:    caller.UserID,
		ServiceID: m.serviceID,
		Name:      req.Name,
		Status:    models.APIKeyStatusActive,
		CreatedAt: now.Unix(),
	}
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return nil, ErrInvalidExpiry
		}
		at := expires.Unix()
		key.ExpiresAt = &at
	}

	rawKey := KeyPrefix + strings.ReplaceAll(uuid.New().String(), "-", "") + strings.ReplaceAll(uuid.New().String(), "-", "")
	key.KeyHash = HashKey(rawKey)

	// The owner's email is what the validator hands back as the email claim.
	if caller.Email != "" {
		if err := m.users.Upsert(ctx, &models.User{ID: caller.UserID, Email: caller.Email, CreatedAt: now.Unix()}); err != nil {
			log.Warn().Err(err).Str("user_id", caller.UserID).Msg("failed to record api key owner")
		}
	}

	if err := m.keys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	return json.Marshal(createdKeyView{keyView: newKeyView(key), PlaintextKey: rawKey})
}

func (m *LocalKeyManager) ListAPIKeys(ctx context.Context, caller identity.Caller) (json.RawMessage, error) {
	if caller.UserID == "" {
		return nil, ErrNotAuthenticated
	}

	keys, err := m.keys.ListByUser(ctx, caller.UserID, m.serviceID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	views := make([]keyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, newKeyView(k))
	}
	return json.Marshal(views)
}

// DeleteAPIKey revokes rather than removes, so a deleted key keeps failing
// as invalid instead of disappearing from the audit trail.
func (m *LocalKeyManager) DeleteAPIKey(ctx context.Context, caller identity.Caller, keyID string) error {
	if caller.UserID == "" {
		return ErrNotAuthenticated
	}
	return m.keys.Revoke(ctx, keyID, caller.UserID, m.serviceID)
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func formatUnixPtr(sec *int64) *string {
	if sec == nil {
		return nil
	}
	s := formatUnix(*sec)
	return &s
}
