package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
)

const (
	livenessJobName     = "kiosk-liveness"
	defaultOfflineAfter = 5 * time.Minute
)

type staleKioskLister interface {
	ListStale(ctx context.Context, cutoff time.Time) ([]models.Kiosk, error)
}

type LivenessJobParams struct {
	Logger       *logger.Logger
	Kiosks       staleKioskLister
	Metrics      *metrics.KioskMetrics
	OfflineAfter time.Duration
	Now          func() time.Time
}

// NewLivenessJob reports active kiosks that stopped sending heartbeats. It
// only reads; nothing about the kiosk changes.
func NewLivenessJob(params LivenessJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Kiosks == nil {
		return nil, fmt.Errorf("kiosk repository required")
	}
	after := params.OfflineAfter
	if after <= 0 {
		after = defaultOfflineAfter
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &livenessJob{
		logg:    params.Logger,
		kiosks:  params.Kiosks,
		metrics: params.Metrics,
		after:   after,
		now:     now,
	}, nil
}

type livenessJob struct {
	logg    *logger.Logger
	kiosks  staleKioskLister
	metrics *metrics.KioskMetrics
	after   time.Duration
	now     func() time.Time
}

func (j *livenessJob) Name() string { return livenessJobName }

func (j *livenessJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	stale, err := j.kiosks.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale kiosks: %w", err)
	}
	j.metrics.SetOffline(len(stale))

	for _, kiosk := range stale {
		fields := map[string]any{"kiosk_id": kiosk.ID, "kiosk_code": kiosk.Code}
		if kiosk.LastHeartbeatAt != nil {
			fields["last_heartbeat_at"] = kiosk.LastHeartbeatAt.UTC()
		}
		j.logg.Warn(j.logg.WithFields(ctx, fields), "kiosk.offline")
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"offline": len(stale), "cutoff": cutoff}), "kiosk.liveness.checked")
	return nil
}
