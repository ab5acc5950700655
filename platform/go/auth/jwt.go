package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// HMACTokenVerifier returns a VerifyFunc that validates HS256-signed tokens with the shared secret.
func HMACTokenVerifier(secret []byte) VerifyFunc {
	if len(secret) == 0 {
		panic("auth.HMACTokenVerifier: secret must not be empty")
	}

	return func(_ context.Context, token string) (map[string]interface{}, error) {
		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return secret, nil
		})
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if !parsed.Valid {
			return nil, errors.New("invalid token")
		}

		return claims, nil
	}
}

// SignHMACToken builds a signed HS256 token for the given claims. Used by the admin CLI
// to mint short-lived tokens for scripted API access.
func SignHMACToken(secret []byte, claims map[string]interface{}) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret must not be empty")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}
