package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FromToken derives the user from a gateway bearer token. The token's
// subject claim carries the user id, matching what the dev gateway issues.
func FromToken(token string, secret []byte) (*User, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("session token has no subject")
	}
	return &User{ID: sub}, nil
}

// SignToken issues a bearer token for the user id. The dev gateway's token
// endpoint and the test suites use it; production tokens come from the
// hosted auth service.
func SignToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
