package middleware

import (
	"log/slog"
	"net/http"

	"github.com/daap14/loyalty/internal/api/response"
	"github.com/daap14/loyalty/internal/auth"
)

// RequireSuperuser rejects every identity except the superuser with 403.
func RequireSuperuser() func(http.Handler) http.Handler {
	return require("Superuser access required", func(id *auth.Identity) bool {
		return id.IsSuperuser
	})
}

// RequireRole rejects identities holding none of roles. The superuser passes
// every role check.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return require("Insufficient permissions", func(id *auth.Identity) bool {
		return id.HasRole(roles...)
	})
}

// require must run after Auth; a request without an identity is answered
// with 401.
func require(denied string, allow func(*auth.Identity) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
				return
			}
			if !allow(identity) {
				slog.Warn("request denied",
					"userId", identity.UserID,
					"method", r.Method,
					"path", r.URL.Path,
					"requestId", requestID,
				)
				response.Err(w, http.StatusForbidden, "FORBIDDEN", denied, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
