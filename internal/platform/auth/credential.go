package auth

import (
	"net/http"
	"strings"
)

const (
	HeaderAPIKey     = "X-API-Key"
	QueryParamAPIKey = "api_key"
	bearerScheme     = "bearer"
)

type CredentialKind int

const (
	CredentialNone CredentialKind = iota
	CredentialAPIKey
	CredentialBearer
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialAPIKey:
		return "api_key"
	case CredentialBearer:
		return "jwt"
	default:
		return "none"
	}
}

type Credential struct {
	Kind  CredentialKind
	Value string
}

// ExtractCredential looks for an API key in the X-API-Key header, then in the
// api_key query parameter. It never inspects the Authorization header; the
// bearer path is the caller's fallback.
func ExtractCredential(r *http.Request) Credential {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return Credential{Kind: CredentialAPIKey, Value: key}
	}
	if key := strings.TrimSpace(r.URL.Query().Get(QueryParamAPIKey)); key != "" {
		return Credential{Kind: CredentialAPIKey, Value: key}
	}
	return Credential{Kind: CredentialNone}
}

// ExtractBearer returns the token of an "Authorization: Bearer <token>" header.
func ExtractBearer(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !found || strings.ToLower(scheme) != bearerScheme {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
