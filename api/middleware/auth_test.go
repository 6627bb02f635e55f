package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pkgAuth "github.com/vendkiosk/kiosk-backend/pkg/auth"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
)

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "kiosk-backend", ExpirationMinutes: 60}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminAuthRejectsMissingToken(t *testing.T) {
	handler := AdminAuth(testJWT(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAdminAuthRejectsInvalidToken(t *testing.T) {
	handler := AdminAuth(testJWT(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAdminAuthRejectsForeignSecret(t *testing.T) {
	other := testJWT()
	other.Secret = "other"
	token, err := pkgAuth.MintAdminToken(other, time.Now(), pkgAuth.AdminTokenPayload{Operator: "ops", Role: enums.AdminRoleAdmin})
	require.NoError(t, err)

	handler := AdminAuth(testJWT(), nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAdminAuthSeedsContext(t *testing.T) {
	cfg := testJWT()
	token, err := pkgAuth.MintAdminToken(cfg, time.Now(), pkgAuth.AdminTokenPayload{Operator: "ops@store", Role: enums.AdminRoleViewer})
	require.NoError(t, err)

	var operator string
	var role enums.AdminRole
	handler := AdminAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator = OperatorFromContext(r.Context())
		role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "ops@store", operator)
	require.Equal(t, enums.AdminRoleViewer, role)
}

func TestRequireAdminForWrites(t *testing.T) {
	cases := []struct {
		name   string
		role   enums.AdminRole
		method string
		want   int
	}{
		{"admin write", enums.AdminRoleAdmin, http.MethodPost, http.StatusOK},
		{"admin read", enums.AdminRoleAdmin, http.MethodGet, http.StatusOK},
		{"viewer read", enums.AdminRoleViewer, http.MethodGet, http.StatusOK},
		{"viewer write", enums.AdminRoleViewer, http.MethodPatch, http.StatusForbidden},
		{"no role", "", http.MethodGet, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireAdminForWrites(nil)(okHandler())
			req := httptest.NewRequest(tc.method, "/", nil)
			req = req.WithContext(WithAdmin(context.Background(), "ops", tc.role))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			require.Equal(t, tc.want, resp.Code)
		})
	}
}
