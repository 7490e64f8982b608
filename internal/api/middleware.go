package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/bobarin/vibecast/internal/models"
)

// APIKeyAuth rejects requests that do not carry apiKey in X-API-Key or as a
// bearer token. Missing keys get 401, wrong keys 403.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestAPIKey(r)
			switch {
			case key == "":
				respondError(w, http.StatusUnauthorized, models.ErrorResponse{
					Error:   "Missing API key",
					Details: "Provide X-API-Key header or Authorization: Bearer <key>",
				})
			case subtle.ConstantTimeCompare([]byte(key), expected) != 1:
				respondError(w, http.StatusForbidden, models.ErrorResponse{Error: "Invalid API key"})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// requestAPIKey prefers X-API-Key over the Authorization header.
func requestAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
