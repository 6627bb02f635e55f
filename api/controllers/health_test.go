package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vendkiosk/kiosk-backend/pkg/config"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	ok := pingFunc(func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": ok, "gcs": nil}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "dev", rec.Header().Get("X-Kiosk-Env"))

	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": down}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthLive(&config.Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "live", decodeBody(t, rec)["data"].(map[string]any)["status"])
}
