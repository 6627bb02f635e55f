package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, now time.Time) *SENSClient {
	t.Helper()
	client, err := NewSENSClient(SENSOptions{
		BaseURL:   url,
		ServiceID: "ncp:sms:kr:1:svc",
		AccessKey: "access",
		SecretKey: "secret",
		From:      "0212345678",
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	client.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(sendRetries, retry.NewConstant(time.Millisecond))
	}
	return client
}

func TestSENSSendSignsRequest(t *testing.T) {
	now := time.UnixMilli(1767225600123)
	var got sensRequest
	var headers http.Header
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, now)
	require.NoError(t, client.Send(context.Background(), "01012345678", "code 123456"))

	require.Equal(t, "/sms/v2/services/ncp:sms:kr:1:svc/messages", path)
	require.Equal(t, "1767225600123", headers.Get("x-ncp-apigw-timestamp"))
	require.Equal(t, "access", headers.Get("x-ncp-iam-access-key"))
	require.Equal(t,
		Signature("secret", http.MethodPost, "/sms/v2/services/ncp:sms:kr:1:svc/messages", "1767225600123", "access"),
		headers.Get("x-ncp-apigw-signature-v2"))
	require.Equal(t, "application/json; charset=utf-8", headers.Get("Content-Type"))

	require.Equal(t, "SMS", got.Type)
	require.Equal(t, "COMM", got.ContentType)
	require.Equal(t, "82", got.CountryCode)
	require.Equal(t, "0212345678", got.From)
	require.Equal(t, "code 123456", got.Content)
	require.Equal(t, []sensMessage{{To: "01012345678"}}, got.Messages)
}

func TestSignatureKnownValue(t *testing.T) {
	require.Equal(t, "ZVJZipQLYLJk7cACu65iKaE7U1IUva+RhVWXL+PJy6g=", Signature("secret", "POST", "/uri", "1", "key"))
	require.NotEqual(t, Signature("secret", "POST", "/uri", "1", "key"), Signature("secret", "POST", "/uri", "2", "key"))
}

func TestSENSRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, time.Now())
	require.NoError(t, client.Send(context.Background(), "01012345678", "hi"))
	require.Equal(t, int32(3), calls.Load())
}

func TestSENSDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad signature"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, time.Now())
	err := client.Send(context.Background(), "01012345678", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad signature")
	require.Equal(t, int32(1), calls.Load())
}

func TestNewSENSClientRequiresCredentials(t *testing.T) {
	_, err := NewSENSClient(SENSOptions{ServiceID: "svc", From: "0200000000"})
	require.Error(t, err)
}

func TestBreakerTripsAndRecovers(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute}, func() time.Time { return now })
	boom := errors.New("boom")

	require.ErrorIs(t, b.Execute(func() error { return boom }), boom)
	require.Equal(t, BreakerClosed, b.State())
	require.ErrorIs(t, b.Execute(func() error { return boom }), boom)
	require.Equal(t, BreakerOpen, b.State())

	called := false
	require.ErrorIs(t, b.Execute(func() error { called = true; return nil }), ErrCircuitOpen)
	require.False(t, called)

	now = now.Add(time.Minute)
	require.Equal(t, BreakerHalfOpen, b.State())
	require.NoError(t, b.Execute(func() error { return nil }))
	require.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second}, func() time.Time { return now })
	_ = b.Execute(func() error { return errors.New("x") })
	now = now.Add(time.Second)
	require.Equal(t, BreakerHalfOpen, b.State())
	_ = b.Execute(func() error { return errors.New("x") })
	require.Equal(t, BreakerOpen, b.State())
	require.Equal(t, "open", b.State().String())
}

type countingSender struct {
	calls int
	err   error
}

func (s *countingSender) Send(context.Context, string, string) error {
	s.calls++
	return s.err
}

func TestBreakerSenderFailsFast(t *testing.T) {
	next := &countingSender{err: errors.New("carrier down")}
	sender := NewBreakerSender(next, NewBreaker(BreakerConfig{FailureThreshold: 1}, nil))

	require.Error(t, sender.Send(context.Background(), "010", "m"))
	err := sender.Send(context.Background(), "010", "m")
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, 1, next.calls)
}

func TestMaskPhone(t *testing.T) {
	require.Equal(t, "010****5678", maskPhone("01012345678"))
	require.Equal(t, "****", maskPhone("123"))
}
