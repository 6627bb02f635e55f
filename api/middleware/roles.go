package middleware

import (
	"net/http"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

// RequireAdminForWrites lets viewers read and keeps every other method to
// the admin role.
func RequireAdminForWrites(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			switch {
			case role == enums.AdminRoleAdmin:
			case role == enums.AdminRoleViewer && (r.Method == http.MethodGet || r.Method == http.MethodHead):
			default:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
