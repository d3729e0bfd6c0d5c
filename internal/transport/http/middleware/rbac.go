package middleware

import (
	"log/slog"
	"net/http"

	"hrpayroll/internal/requestctx"
	"hrpayroll/internal/transport/http/api"
)

type PermissionChecker interface {
	Allowed(role, permission string) (bool, error)
}

func RequirePermission(permission string, checker PermissionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", GetRequestID(r.Context()))
				return
			}

			allowed, err := checker.Allowed(user.RoleName, permission)
			if err != nil {
				slog.Error("permission check failed", append(requestctx.LogAttrs(r.Context()), "permission", permission, "err", err)...)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", GetRequestID(r.Context()))
				return
			}
			if !allowed {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
