package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gosuda/deepsearch/internal/domain"
)

// Authenticator resolves raw credentials to a user.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, token string) (domain.UserID, error)
	AuthenticateAPIKey(ctx context.Context, rawKey string) (domain.UserID, error)
}

const unauthorizedBody = `{"error":"Unauthorized","message":"missing or invalid credentials"}`

// Auth resolves the caller from a Bearer token or X-API-Key header. Requests
// without a valid identity are rejected with 401 before any handler runs.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Try Bearer token first.
			if tok := extractBearer(r); tok != "" {
				if id, err := authn.AuthenticateToken(ctx, tok); err == nil {
					next.ServeHTTP(w, r.WithContext(withIdentity(ctx, id)))
					return
				}
			}

			// Try API key.
			if key := r.Header.Get("X-API-Key"); key != "" {
				if id, err := authn.AuthenticateAPIKey(ctx, key); err == nil {
					next.ServeHTTP(w, r.WithContext(withIdentity(ctx, id)))
					return
				}
			}

			writeJSON(w, http.StatusUnauthorized, unauthorizedBody)
		})
	}
}

func withIdentity(ctx context.Context, id domain.UserID) context.Context {
	ctx = WithUserID(ctx, id)
	logger := zerolog.Ctx(ctx).With().Str("user_id", id.String()).Logger()
	return logger.WithContext(ctx)
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
