package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
)

type samplePayload struct {
	Name  string `json:"name" validate:"required"`
	Limit int    `json:"limit" validate:"gte=0"`
}

type devicePayload struct {
	AppVersion *string `json:"app_version"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","bogus":1}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"limit":-1}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["name"])
	require.Equal(t, "must be at least 0", details["limit"])
}

func TestDecodeDeviceBodyIsLenient(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"app_version":"1.2.0","firmware_build":77}`))
	var dest devicePayload
	require.NoError(t, DecodeDeviceBody(req, &dest))
	require.Equal(t, "1.2.0", *dest.AppVersion)

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var none devicePayload
	require.NoError(t, DecodeDeviceBody(empty, &none))
	require.Nil(t, none.AppVersion)

	broken := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"app_version":`))
	require.True(t, pkgerrors.IsCode(DecodeDeviceBody(broken, &none), pkgerrors.CodeValidation))
}

func TestParseIDParam(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", value)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	id, err := ParseIDParam(withParam("42"), "id")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := ParseIDParam(withParam(bad), "id")
		require.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "value %q", bad)
	}
}

func TestParseOptionalQueryID(t *testing.T) {
	got, err := ParseOptionalQueryID(httptest.NewRequest(http.MethodGet, "/?store_id=7", nil), "store_id")
	require.NoError(t, err)
	require.Equal(t, int64(7), *got)

	got, err = ParseOptionalQueryID(httptest.NewRequest(http.MethodGet, "/", nil), "store_id")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = ParseOptionalQueryID(httptest.NewRequest(http.MethodGet, "/?store_id=x", nil), "store_id")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	got, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 50, 1, 200)
	require.NoError(t, err)
	require.Equal(t, 50, got)

	got, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=20", nil), "limit", 50, 1, 200)
	require.NoError(t, err)
	require.Equal(t, 20, got)

	for _, q := range []string{"/?limit=abc", "/?limit=0", "/?limit=201"} {
		_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, q, nil), "limit", 50, 1, 200)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), q)
	}
}
