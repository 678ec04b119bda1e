package api

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"caseflow/pkg/authtoken"
	"caseflow/pkg/config"
)

// StaffAuth verifies the staff session token and attaches the identity to the context.
//
// Expected header:
// - Authorization: Bearer <JWT>
//
// Outside prod, a missing Authorization header falls back to X-Staff-Id / X-Staff-Role
// so the frontend can be run against a local API without an identity provider.
func StaffAuth(cfg config.Config, logger *zap.Logger, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token := strings.TrimSpace(authz[7:])
				staff, err := authtoken.Verify(token, cfg.Auth.Audience, cfg.Auth.TokenSecret, now())
				if err != nil {
					logger.Debug("staff token rejected", zap.Error(err))
					WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithStaff(r.Context(), staff)))
				return
			}

			if !cfg.IsProd() {
				if staff, ok := devStaff(r); ok {
					next.ServeHTTP(w, r.WithContext(WithStaff(r.Context(), staff)))
					return
				}
			}

			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token")
		})
	}
}

func devStaff(r *http.Request) (*authtoken.Staff, bool) {
	id := strings.TrimSpace(r.Header.Get("X-Staff-Id"))
	if id == "" {
		return nil, false
	}
	role, err := authtoken.ParseRole(r.Header.Get("X-Staff-Role"))
	if err != nil {
		role = authtoken.RoleCaseManager
	}
	return &authtoken.Staff{ID: id, Name: id, Role: role}, true
}

// RequireAdmin must run after StaffAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := StaffFromContext(r.Context())
		if s == nil {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing staff identity")
			return
		}
		if !s.IsAdmin() {
			WriteError(w, http.StatusForbidden, "FORBIDDEN", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
