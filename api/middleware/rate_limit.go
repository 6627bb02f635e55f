package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

// WindowLimiter is the fixed-window counter the pkg/redis client provides.
type WindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// IPRateLimitPolicy caps requests per client IP in a fixed window.
type IPRateLimitPolicy struct {
	Name   string
	Window time.Duration
	Limit  int
}

func (p IPRateLimitPolicy) enabled() bool {
	return p.Window > 0 && p.Limit > 0
}

func (p IPRateLimitPolicy) scope(ip string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "default"
	}
	return fmt.Sprintf("ip:%s:%s", name, ip)
}

// IPRateLimit throttles unauthenticated endpoints such as pair-code lookup,
// where a 4-digit space would otherwise be cheap to walk.
func IPRateLimit(policy IPRateLimitPolicy, limiter WindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := ClientIP(r)
			allowed, count, err := limiter.FixedWindowAllow(ctx, policy.scope(ip), int64(policy.Limit), policy.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":   policy.Name,
						"ip":       ip,
						"attempts": count,
						"limit":    policy.Limit,
					}), "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
