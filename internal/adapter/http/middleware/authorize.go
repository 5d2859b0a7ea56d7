package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenAuthorizer validates a bearer token presented at the gateway edge.
// It is the only authorization hook the service carries; request-level
// user/role policy belongs to whatever sits behind the authorizer.
type TokenAuthorizer interface {
	Authorize(ctx context.Context, token string) error
}

// JWTAuthorizer validates HMAC-signed JWTs against a shared secret.
type JWTAuthorizer struct {
	Secret []byte
}

// Authorize implements TokenAuthorizer.
func (a JWTAuthorizer) Authorize(_ context.Context, token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// Authorize returns an HTTP middleware that requires a valid bearer token on
// every request. On failure a 401 JSON error envelope is returned.
func Authorize(authorizer TokenAuthorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, "Authentication required. Provide a Bearer token.")
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")
			if err := authorizer.Authorize(r.Context(), token); err != nil {
				writeAuthError(w, "Invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"status":401,"message":"` + message + `"}`))
}
