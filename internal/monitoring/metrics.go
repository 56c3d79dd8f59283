package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	internalerrors "github.com/raidwatch/raidwatch/internal/errors"
)

// PollMetrics manages Prometheus instrumentation for polling activity.
type PollMetrics struct {
	pollDuration prometheus.Histogram
	pollResults  *prometheus.CounterVec
	pollErrors   *prometheus.CounterVec
	lastSuccess  prometheus.Gauge
	staleness    prometheus.Gauge

	mu              sync.Mutex
	lastSuccessTime time.Time
}

var (
	pollMetricsInstance *PollMetrics
	pollMetricsOnce     sync.Once
)

func getPollMetrics() *PollMetrics {
	pollMetricsOnce.Do(func() {
		pollMetricsInstance = newPollMetrics()
	})
	return pollMetricsInstance
}

func newPollMetrics() *PollMetrics {
	pm := &PollMetrics{
		pollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "raidwatch",
				Subsystem: "monitor",
				Name:      "poll_duration_seconds",
				Help:      "Duration of refresh cycles.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 20, 30},
			},
		),
		pollResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "raidwatch",
				Subsystem: "monitor",
				Name:      "poll_total",
				Help:      "Total refresh cycles partitioned by result.",
			},
			[]string{"result"},
		),
		pollErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "raidwatch",
				Subsystem: "monitor",
				Name:      "poll_errors_total",
				Help:      "Refresh failures grouped by error type.",
			},
			[]string{"error_type"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "raidwatch",
				Subsystem: "monitor",
				Name:      "poll_last_success_timestamp",
				Help:      "Unix timestamp of the last successful refresh cycle.",
			},
		),
		staleness: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "raidwatch",
				Subsystem: "monitor",
				Name:      "poll_staleness_seconds",
				Help:      "Seconds since the last successful refresh. -1 indicates no successes yet.",
			},
		),
	}

	prometheus.MustRegister(
		pm.pollDuration,
		pm.pollResults,
		pm.pollErrors,
		pm.lastSuccess,
		pm.staleness,
	)

	return pm
}

// PollResult captures timing and outcome for one refresh cycle.
type PollResult struct {
	Success   bool
	Error     error
	StartTime time.Time
	EndTime   time.Time
}

// RecordResult records metrics for a refresh cycle.
func (pm *PollMetrics) RecordResult(result PollResult) {
	if pm == nil {
		return
	}

	duration := result.EndTime.Sub(result.StartTime).Seconds()
	if duration < 0 {
		duration = 0
	}
	pm.pollDuration.Observe(duration)

	if result.Success {
		pm.pollResults.WithLabelValues("success").Inc()
		pm.lastSuccess.Set(float64(result.EndTime.Unix()))
		pm.mu.Lock()
		pm.lastSuccessTime = result.EndTime
		pm.mu.Unlock()
		pm.staleness.Set(0)
		return
	}

	pm.pollResults.WithLabelValues("error").Inc()
	pm.pollErrors.WithLabelValues(string(internalerrors.TypeOf(result.Error))).Inc()

	pm.mu.Lock()
	last := pm.lastSuccessTime
	pm.mu.Unlock()

	if last.IsZero() {
		pm.staleness.Set(-1)
		return
	}
	staleness := result.EndTime.Sub(last).Seconds()
	if staleness < 0 {
		staleness = 0
	}
	pm.staleness.Set(staleness)
}
