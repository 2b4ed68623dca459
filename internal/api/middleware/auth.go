package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	apiContext "graphreader/internal/api/context"
	apperrors "graphreader/internal/pkg/errors"
	"graphreader/internal/platform/auth"
	"graphreader/internal/platform/metrics"
)

type AuthMiddleware struct {
	resolver *auth.Resolver
	metrics  *metrics.Metrics
}

func NewAuthMiddleware(resolver *auth.Resolver, m *metrics.Metrics) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver, metrics: m}
}

// Handle gates next behind a successful credential resolution and stores the
// resolved claims in the request context.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, kind, err := m.resolver.Resolve(r)
		if err != nil {
			detail := auth.Detail(err)
			m.metrics.ObserveAuth(kind.String(), detail)
			log.Warn().
				Str("request_id", GetRequestID(r.Context())).
				Str("credential", kind.String()).
				Str("reason", detail).
				Str("path", r.URL.Path).
				Msg("authentication failed")
			if !errors.Is(err, apperrors.ErrUnauthorized) {
				log.Error().Err(err).Msg("unexpected authentication error")
			}
			apperrors.WriteUnauthorized(w, detail)
			return
		}

		m.metrics.ObserveAuth(kind.String(), "ok")
		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}

// ClaimsFromContext returns the claims stored by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (auth.UserClaims, bool) {
	claims, ok := ctx.Value(apiContext.Claims).(auth.UserClaims)
	return claims, ok
}
