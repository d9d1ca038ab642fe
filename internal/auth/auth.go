// Package auth guards the operator endpoints with a static bearer key.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// DenyFunc writes a rejection response.
type DenyFunc func(w http.ResponseWriter, status int, message string)

func ExtractBearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", errors.New("missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", errors.New("invalid Authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	if token == "" {
		return "", errors.New("missing API key")
	}
	return token, nil
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Authenticate reports whether presented matches apiKey. An empty apiKey
// matches nothing.
func Authenticate(presented, apiKey string) bool {
	return constantTimeEqual(presented, apiKey)
}

// Middleware rejects requests whose bearer token does not match apiKey.
func Middleware(apiKey string, deny DenyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ExtractBearerToken(r)
			if err != nil {
				deny(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !Authenticate(token, apiKey) {
				deny(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
