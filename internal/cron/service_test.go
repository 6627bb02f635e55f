package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
	"go.uber.org/multierr"
)

type fakeLock struct {
	held     bool
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return f.err
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &testJob{name: "ok"}
	bad := &testJob{name: "bad", err: errors.New("boom")}
	worse := &testJob{name: "worse", err: errors.New("bang")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, lock, reg, bad, ok, worse)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Contains(t, err.Error(), "bad: boom")
	require.Contains(t, err.Error(), "worse: bang")

	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, bad.runs)
	require.Equal(t, 1, worse.runs)
	require.Equal(t, 1, lock.releases)
	require.False(t, lock.held)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "kiosk_cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, l := range m.GetLabel() {
				key += l.GetValue() + "/"
			}
			counts[key] = m.GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(1), counts["ok/success/"])
	require.Equal(t, float64(1), counts["bad/failure/"])
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "j"}
	lock := &fakeLock{held: true}
	svc := newTestService(t, lock, nil, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Zero(t, job.runs)
	require.Zero(t, lock.releases)
}

func TestRunOnceReportsReleaseFailure(t *testing.T) {
	lock := &fakeLock{err: errors.New("redis gone")}
	svc := newTestService(t, lock, nil, &testJob{name: "j"})

	err := svc.RunOnce(context.Background())
	require.ErrorContains(t, err, "lock release")
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "j"}
	svc := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
	require.Equal(t, 1, job.runs, "first cycle runs immediately")
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: quietLogger(), Lock: &fakeLock{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Lock: &fakeLock{}})
	require.Error(t, err)
}
