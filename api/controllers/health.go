package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is anything readiness can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Kiosk-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently; nil entries are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Kiosk-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			name, dep := name, dep
			g.Go(func() error {
				if err := dep.Ping(gctx); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" not ready")
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
