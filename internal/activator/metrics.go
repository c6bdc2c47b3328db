package activator

import (
	"sync"

	"github.com/openclaw/gateway/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activationsTotal   *prometheus.CounterVec
	reloaderDegraded   prometheus.Gauge
	snapshotWarnings   *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// initMetrics lazily registers the activator's Prometheus collectors.
// Construction never fails when no registry is wired up (unit tests call
// New without touching Prometheus at all): every recording method below is
// nil-guarded.
func initMetrics() {
	metricsOnce.Do(func() {
		activationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_secrets_activations_total",
				Help: "Total number of secrets snapshot activations, by trigger and result.",
			},
			[]string{"trigger", "result"},
		)

		reloaderDegraded = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_secrets_reloader_degraded",
				Help: "1 when the active snapshot is stale after a failed reload, 0 otherwise.",
			},
		)

		snapshotWarnings = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_secrets_snapshot_warnings_total",
				Help: "Total number of non-fatal snapshot warnings emitted, by code.",
			},
			[]string{"code"},
		)

		metricsRegistered = true
	})
}

func recordActivation(trigger, result string) {
	if !metricsRegistered || activationsTotal == nil {
		return
	}
	activationsTotal.WithLabelValues(trigger, result).Inc()
}

func setDegradedGauge(degraded bool) {
	if !metricsRegistered || reloaderDegraded == nil {
		return
	}
	value := 0.0
	if degraded {
		value = 1.0
	}
	reloaderDegraded.Set(value)
}

func recordWarnings(warnings []snapshot.Warning) {
	if !metricsRegistered || snapshotWarnings == nil {
		return
	}
	for _, w := range warnings {
		snapshotWarnings.WithLabelValues(w.Code).Inc()
	}
}
