// Package middleware provides HTTP middleware shared across transports.
package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// OperatorAuth guards mutating operator endpoints (threshold updates) with
// an X-Operator-Key header checked against a bcrypt hash from config. An
// empty hash disables the endpoints entirely rather than leaving them open.
func OperatorAuth(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.Error(w, `{"error":"operator endpoints disabled: no key configured"}`, http.StatusForbidden)
				return
			}

			key := r.Header.Get("X-Operator-Key")
			if key == "" {
				http.Error(w, `{"error":"operator key required"}`, http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				http.Error(w, `{"error":"invalid operator key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
