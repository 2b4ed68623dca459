package auth

import (
	"net/http"
)

// Resolver turns a request into the caller's claims. An API key, when
// present, is authoritative: if it fails, the bearer token is never tried.
type Resolver struct {
	apiKeys APIKeyValidator
	tokens  *TokenValidator
}

func NewResolver(apiKeys APIKeyValidator, tokens *TokenValidator) *Resolver {
	return &Resolver{apiKeys: apiKeys, tokens: tokens}
}

// Resolve returns the resolved claims together with the credential kind
// that produced them (or was rejected).
func (r *Resolver) Resolve(req *http.Request) (UserClaims, CredentialKind, error) {
	if cred := ExtractCredential(req); cred.Kind == CredentialAPIKey {
		claims, err := r.apiKeys.Validate(req.Context(), cred.Value)
		return claims, CredentialAPIKey, err
	}

	token, ok := ExtractBearer(req)
	if !ok {
		return nil, CredentialNone, ErrNotAuthenticated
	}

	claims, err := r.tokens.Validate(token)
	return claims, CredentialBearer, err
}
