package models

import "time"

const (
	APIKeyStatusActive  = "active"
	APIKeyStatusRevoked = "revoked"
	APIKeyStatusExpired = "expired"
)

// APIKey is the local replica of a key issued by the identity service.
// Only the hash of the plaintext key is ever stored.
type APIKey struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	ServiceID  string  `json:"service_id"`
	Name       *string `json:"name,omitempty"`
	KeyHash    string  `json:"-"`
	Status     string  `json:"status"`
	CreatedAt  int64   `json:"created_at"`
	ExpiresAt  *int64  `json:"expires_at,omitempty"`
	LastUsedAt *int64  `json:"last_used_at,omitempty"`
}

// Expired reports whether the key has an expiry at or before now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && *k.ExpiresAt <= now.Unix()
}
