package middleware

import (
	"net/http"
	"strings"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	pkgAuth "github.com/vendkiosk/kiosk-backend/pkg/auth"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

// AdminAuth validates the operator bearer token and seeds operator and role
// into the request context.
func AdminAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAdminToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithAdmin(r.Context(), claims.Operator, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"operator":   claims.Operator,
					"admin_role": string(claims.Role),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}
