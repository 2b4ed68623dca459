package auth

import (
	"errors"
	"fmt"

	apperrors "graphreader/internal/pkg/errors"
)

// Every resolution failure wraps apperrors.ErrUnauthorized; the message is the
// detail returned to the client.
var (
	ErrNotAuthenticated = fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, apperrors.DetailNotAuthenticated)
	ErrInvalidAPIKey    = fmt.Errorf("%w: Invalid API key", apperrors.ErrUnauthorized)
	ErrAPIKeyExpired    = fmt.Errorf("%w: API key expired", apperrors.ErrUnauthorized)
	ErrInvalidToken     = fmt.Errorf("%w: Invalid token", apperrors.ErrUnauthorized)
)

// Detail maps a resolution error to the client-facing message.
func Detail(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAPIKey):
		return "Invalid API key"
	case errors.Is(err, ErrAPIKeyExpired):
		return "API key expired"
	case errors.Is(err, ErrInvalidToken):
		return "Invalid token"
	default:
		return apperrors.DetailNotAuthenticated
	}
}
