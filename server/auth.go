package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenMissing = errors.New("token required")
)

// Identity is who a join token says the player is
type Identity struct {
	PlayerID string
	Name     string
}

// TokenVerifier checks HS256 join tokens issued by an external service.
// The subject claim carries the player id, "name" the display name.
type TokenVerifier struct {
	secret  []byte
	require bool
}

// NewTokenVerifier returns nil when no secret is configured
func NewTokenVerifier(secret string, require bool) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret), require: require}
}

// Verify validates a token and returns the identity it carries
func (v *TokenVerifier) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	return Identity{PlayerID: sub, Name: name}, nil
}

// Resolve applies a join's token to the claimed identity. Without a verifier
// the claimed identity stands; with one, a valid token overrides it.
func (v *TokenVerifier) Resolve(token string, claimed Identity) (Identity, error) {
	if v == nil {
		return claimed, nil
	}
	if token == "" {
		if v.require {
			return Identity{}, ErrTokenMissing
		}
		return claimed, nil
	}
	id, err := v.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	if id.Name == "" {
		id.Name = claimed.Name
	}
	return id, nil
}
