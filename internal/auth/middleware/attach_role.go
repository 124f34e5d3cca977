package auth

import (
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the stored one, so role
// changes and removed accounts take effect before tokens expire.
func AttachRoleFromDB(users *UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role, err := users.Role(ctx, UserIDFromContext(ctx))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, ErrUserNotFound):
				rbac.Deny(w, http.StatusUnauthorized, "unknown user")
			default:
				rbac.Deny(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}
