package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cronResultSuccess = "success"
	cronResultFailure = "failure"
)

// CronJobMetrics tracks scheduled job runs by job name and outcome.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Cron job wall time.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// ObserveRun records one finished run. A nil err counts as success.
func (m *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, cronResultFailure).Inc()
		return
	}
	m.runs.WithLabelValues(job, cronResultSuccess).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}
