package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"graphreader/internal/platform/identity"
)

type KeyVerifier interface {
	VerifyAPIKey(ctx context.Context, key string) (*identity.VerifiedKey, error)
}

// RemoteAPIKeyValidator delegates the lookup to the identity service: one
// call per resolution, no retries.
type RemoteAPIKeyValidator struct {
	verifier KeyVerifier
	now      func() time.Time
}

func NewRemoteAPIKeyValidator(verifier KeyVerifier) *RemoteAPIKeyValidator {
	return &RemoteAPIKeyValidator{verifier: verifier, now: time.Now}
}

func (v *RemoteAPIKeyValidator) Validate(ctx context.Context, key string) (UserClaims, error) {
	record, err := v.verifier.VerifyAPIKey(ctx, key)
	if err != nil {
		var upstream *identity.UpstreamError
		if errors.As(err, &upstream) && isRejection(upstream.StatusCode) {
			log.Debug().Int("status", upstream.StatusCode).Msg("identity service rejected api key")
		} else {
			log.Error().Err(err).Msg("api key verification call failed")
		}
		return nil, ErrInvalidAPIKey
	}

	lapsed := record.ExpiresAt != nil && !record.ExpiresAt.After(v.now())
	if err := checkUsable(record.Status, lapsed); err != nil {
		return nil, err
	}

	claims := UserClaims{
		ClaimSubject:  record.UserID,
		ClaimEmail:    nil,
		ClaimAPIKeyID: record.ID,
	}
	if record.Email != nil {
		claims[ClaimEmail] = *record.Email
	}
	return claims, nil
}

func isRejection(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
