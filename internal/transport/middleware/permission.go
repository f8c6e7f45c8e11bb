package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ancestrio/family-archive/internal/auth"
)

// RequirePermission gates a route group on one manage permission. Admins
// pass unconditionally through the user's capability check.
func RequirePermission(logger *slog.Logger, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if !user.HasPermission(permission) {
				logger.Warn("access denied: missing permission",
					"user_id", user.ID,
					"required_permission", permission)
				writeMessage(w, http.StatusForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission gates a route group on a list of permissions.
func RequireAnyPermission(logger *slog.Logger, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if !user.HasAnyPermission(permissions...) {
				logger.Warn("access denied: missing permissions",
					"user_id", user.ID,
					"required_permissions", permissions)
				writeMessage(w, http.StatusForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
