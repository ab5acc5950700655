package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxUserCredentials ctxKey = "TURNS_USER_CREDENTIALS"
)

// UserCredentials describes the authenticated actor attached to a request.
type UserCredentials struct {
	ID    string
	Email string
	Name  *string
	Role  string
}

// UserFromContext retrieves the credentials stored by the JWT middleware, if any.
func UserFromContext(ctx context.Context) (*UserCredentials, bool) {
	v := ctx.Value(ctxUserCredentials)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*UserCredentials)
	return u, ok
}

// VerifyFunc validates the incoming bearer token and returns its claims map.
type VerifyFunc func(ctx context.Context, token string) (map[string]interface{}, error)

// ExtractFunc converts a claims map into UserCredentials.
type ExtractFunc func(claims map[string]interface{}) (*UserCredentials, error)

// JWT parses the request and sets the context credentials using the provided verify/extract functions.
// Requests without a token pass through unauthenticated; endpoint guards decide whether that is acceptable.
func JWT(verify VerifyFunc, extract ExtractFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultCredentialExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := BearerToken(r)
			if token == "" || !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error="invalid_token", error_description="%s"`, err.Error()))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			creds, err := extract(claims)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="invalid claims"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserCredentials, creds)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	return strings.TrimSpace(parts[1]), true
}

// DefaultCredentialExtractor converts standard claims into UserCredentials.
func DefaultCredentialExtractor(claims map[string]interface{}) (*UserCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	creds := &UserCredentials{
		ID:    fallbackStringClaim(claims, []string{"uid", "user_id", "sub"}, ""),
		Email: extractStringClaim(claims, "email"),
		Name:  extractOptionalStringClaim(claims, "name"),
		Role:  extractStringClaim(claims, "role"),
	}

	if creds.ID == "" {
		return nil, errors.New("subject claim is required")
	}

	return creds, nil
}

// RequireAuthenticated rejects requests lacking authenticated credentials with a 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose credentials do not carry the given role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if creds.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UnsignedTokenVerifier accepts unsigned JWTs; development only.
func UnsignedTokenVerifier() VerifyFunc {
	return func(_ context.Context, token string) (map[string]interface{}, error) {
		return parseUnsignedJWTClaims(token)
	}
}

func parseUnsignedJWTClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}

	payload := parts[1]
	switch len(payload) % 4 {
	case 2:
		payload += "=="
	case 3:
		payload += "="
	}

	decoded, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	claims := make(map[string]interface{})
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	return claims, nil
}

func extractStringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid {
			return strVal
		}
	}
	return ""
}

func extractOptionalStringClaim(claims map[string]interface{}, key string) *string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid && strVal != "" {
			return &strVal
		}
	}
	return nil
}

func fallbackStringClaim(claims map[string]interface{}, keys []string, def string) string {
	for _, key := range keys {
		if v := extractStringClaim(claims, key); v != "" {
			return v
		}
	}
	return def
}
