package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID echoes the caller's X-Request-Id or mints one, and scopes the
// request logger with it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" || len(reqID) > 128 {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
