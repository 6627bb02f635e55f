package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	counts map[string]int64
	err    error
}

func (l *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if l.err != nil {
		return false, 0, l.err
	}
	if l.counts == nil {
		l.counts = map[string]int64{}
	}
	l.counts[scope]++
	return l.counts[scope] <= limit, l.counts[scope], nil
}

func TestIPRateLimitBlocksAfterLimit(t *testing.T) {
	limiter := &countingLimiter{}
	policy := IPRateLimitPolicy{Name: "qr-pair", Window: time.Minute, Limit: 2}
	handler := IPRateLimit(policy, limiter, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pair", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	require.Contains(t, limiter.counts, "ip:qr-pair:10.0.0.1")

	other := httptest.NewRequest(http.MethodPost, "/pair", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, other)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestIPRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("must not be called")}
	handler := IPRateLimit(IPRateLimitPolicy{Name: "off"}, limiter, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/pair", nil))
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestIPRateLimitStoreFailure(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}
	handler := IPRateLimit(IPRateLimitPolicy{Name: "qr-pair", Window: time.Minute, Limit: 5}, limiter, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/pair", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
