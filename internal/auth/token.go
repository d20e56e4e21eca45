package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier validates HS256 bearer tokens issued by the identity
// service against the shared secret.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify checks signature and expiry and returns the authenticated userId.
func (v *TokenVerifier) Verify(tokenStr string) (string, error) {
	const op = "auth.Verify"

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	userId, ok := claims["userId"].(string)
	if !ok || userId == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return userId, nil
}
