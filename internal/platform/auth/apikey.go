package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	apperrors "graphreader/internal/pkg/errors"
	"graphreader/internal/platform/models"
)

// APIKeyValidator exchanges a plaintext API key for the owner's claims.
type APIKeyValidator interface {
	Validate(ctx context.Context, key string) (UserClaims, error)
}

// HashKey must stay byte-for-byte compatible with the identity service,
// which stores the lowercase hex sha256 of the plaintext key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

type KeyStore interface {
	GetByHash(ctx context.Context, hash, serviceID string) (*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// checkUsable decides a found key's fate. A key the expiry sweeper already
// marked expired still reports ErrAPIKeyExpired; revoked and unknown statuses
// are invalid even when the expiry has also passed.
func checkUsable(status string, lapsed bool) error {
	switch status {
	case models.APIKeyStatusActive:
		if lapsed {
			return ErrAPIKeyExpired
		}
		return nil
	case models.APIKeyStatusExpired:
		return ErrAPIKeyExpired
	default:
		return ErrInvalidAPIKey
	}
}

// LocalAPIKeyValidator checks keys against the replicated key store.
type LocalAPIKeyValidator struct {
	keys      KeyStore
	users     UserStore
	serviceID string
	now       func() time.Time
}

func NewLocalAPIKeyValidator(keys KeyStore, users UserStore, serviceID string) *LocalAPIKeyValidator {
	return &LocalAPIKeyValidator{
		keys:      keys,
		users:     users,
		serviceID: serviceID,
		now:       time.Now,
	}
}

func (v *LocalAPIKeyValidator) Validate(ctx context.Context, key string) (UserClaims, error) {
	record, err := v.keys.GetByHash(ctx, HashKey(key), v.serviceID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Error().Err(err).Msg("api key lookup failed")
		}
		return nil, ErrInvalidAPIKey
	}

	now := v.now()
	if err := checkUsable(record.Status, record.Expired(now)); err != nil {
		return nil, err
	}

	claims := UserClaims{
		ClaimSubject:  record.UserID,
		ClaimEmail:    nil,
		ClaimAPIKeyID: record.ID,
	}

	user, err := v.users.GetByID(ctx, record.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", record.UserID).Msg("owner lookup failed, continuing without email")
	} else if user != nil {
		claims[ClaimEmail] = user.Email
	}

	// An aborted request must not leave a trace in the key store.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	}
	if err := v.keys.UpdateLastUsed(ctx, record.ID, now); err != nil {
		log.Warn().Err(err).Str("api_key_id", record.ID).Msg("failed to update api key last_used_at")
	}

	return claims, nil
}
