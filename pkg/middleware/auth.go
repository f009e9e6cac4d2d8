package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/saveur/pkg/auth"
	"github.com/shashiranjanraj/saveur/pkg/response"
)

type userIDKey struct{}
type isAdminKey struct{}

// Auth validates the bearer token on the Authorization header and stores the
// token claims (user id, admin flag) in the request context.
// Missing, malformed, and expired tokens are all rejected with a 401.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token == "" {
			response.Unauthorized(w)
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, claims.UserID)
		ctx = context.WithValue(ctx, isAdminKey{}, claims.IsAdmin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Admin rejects requests whose token does not carry the admin flag.
// Mount after Auth. Handlers still re-check the access policy against the
// stored user record, so a stale admin token cannot outlive a demotion.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isAdmin, ok := IsAdminFromCtx(r.Context())
		if !ok || !isAdmin {
			response.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFromCtx returns the authenticated user's id stored by Auth.
func UserIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok
}

// IsAdminFromCtx returns the token's admin flag stored by Auth.
func IsAdminFromCtx(ctx context.Context) (bool, bool) {
	isAdmin, ok := ctx.Value(isAdminKey{}).(bool)
	return isAdmin, ok
}
