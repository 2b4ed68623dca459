package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"graphreader/internal/platform/config"
)

// TokenValidator verifies bearer tokens issued by the identity service.
type TokenValidator struct {
	algorithm string
	audience  string
	key       interface{}
}

func NewTokenValidator(cfg config.JWTConfig) (*TokenValidator, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", cfg.Algorithm)
	}

	key, err := verificationKey(method, cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("jwt %s key: %w", cfg.Algorithm, err)
	}

	return &TokenValidator{
		algorithm: method.Alg(),
		audience:  cfg.Audience,
		key:       key,
	}, nil
}

func verificationKey(method jwt.SigningMethod, secret string) (interface{}, error) {
	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		if secret == "" {
			return nil, errors.New("empty secret")
		}
		return []byte(secret), nil
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		return jwt.ParseRSAPublicKeyFromPEM([]byte(secret))
	case *jwt.SigningMethodECDSA:
		return jwt.ParseECPublicKeyFromPEM([]byte(secret))
	case *jwt.SigningMethodEd25519:
		return jwt.ParseEdPublicKeyFromPEM([]byte(secret))
	default:
		return nil, errors.New("signing method not allowed")
	}
}

// Validate returns the decoded payload untouched so handlers can read any
// claim the issuer adds (email, roles, ...).
func (v *TokenValidator) Validate(tokenString string) (UserClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{v.algorithm})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if sub, ok := claims[ClaimSubject]; !ok || sub == nil {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	return UserClaims(claims), nil
}
