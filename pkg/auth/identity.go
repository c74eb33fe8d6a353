package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Identity is the authenticated actor handed to the core by the external
// auth layer. Staff are exempt from per-user booking limits.
type Identity struct {
	UserID  string
	IsStaff bool
}

// Claims is the token payload issued by the auth layer: the subject is
// the user ID and is_staff carries the elevated-trust flag.
type Claims struct {
	IsStaff bool `json:"is_staff"`
	jwt.RegisteredClaims
}

type contextKey string

const identityKey contextKey = "identity"

// ParseToken verifies an HS256 token against the shared secret and
// extracts the caller's identity.
func ParseToken(secret, tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	return Identity{
		UserID:  claims.Subject,
		IsStaff: claims.IsStaff,
	}, nil
}

// WithIdentity stores the identity in the request context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// FromContext retrieves the authenticated identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
