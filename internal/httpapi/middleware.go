package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/navalmess/api/internal/auth"
	"github.com/navalmess/api/internal/model"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext returns the authenticated identity placed in the
// request context by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// AuthMiddleware validates the bearer identity assertion and stores its
// claims in the request context.
func AuthMiddleware(jwt *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := jwt.Validate(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose identity does not carry one of the
// given roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !allowed[claims.Role] {
				respondError(w, http.StatusForbidden, "role does not permit this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCronToken authorises the cron endpoints with a dedicated shared
// secret, compared in constant time. An empty configured token disables
// the endpoints entirely rather than leaving them open.
func RequireCronToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				respondError(w, http.StatusForbidden, "cron endpoints are not configured")
				return
			}
			key := r.URL.Query().Get("key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(token)) != 1 {
				respondError(w, http.StatusForbidden, "invalid cron token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
