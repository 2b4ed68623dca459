package auth

import "fmt"

const (
	ClaimSubject  = "sub"
	ClaimEmail    = "email"
	ClaimAPIKeyID = "api_key_id"
)

// UserClaims is the resolved identity of a caller. JWT callers get the
// decoded payload verbatim, API-key callers get sub, email and api_key_id.
type UserClaims map[string]interface{}

// Subject returns the sub claim. Issuers that encode it as a number still
// yield its string form.
func (c UserClaims) Subject() string {
	switch v := c[ClaimSubject].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Email returns the caller's email and whether one is known.
func (c UserClaims) Email() (string, bool) {
	v, ok := c[ClaimEmail].(string)
	return v, ok
}

// APIKeyID is empty unless the caller authenticated with an API key.
func (c UserClaims) APIKeyID() string {
	return c.str(ClaimAPIKeyID)
}

func (c UserClaims) ViaAPIKey() bool {
	_, ok := c[ClaimAPIKeyID]
	return ok
}

func (c UserClaims) str(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}
