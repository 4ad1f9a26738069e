// Package metrics exposes Prometheus collectors for reconciliation runs.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	applies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hosttune",
			Subsystem: "module",
			Name:      "applies_total",
			Help:      "Number of module apply attempts by outcome.",
		}, []string{"module", "outcome"},
	)
	reverts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hosttune",
			Subsystem: "module",
			Name:      "reverts_total",
			Help:      "Number of module revert attempts by outcome.",
		}, []string{"module", "outcome"},
	)
	applyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hosttune",
			Subsystem: "module",
			Name:      "apply_duration_seconds",
			Help:      "Wall time spent applying a module.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"module"},
	)
	moduleState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hosttune",
			Subsystem: "module",
			Name:      "state",
			Help:      "Current module state (1 = active state, 0 = inactive).",
		}, []string{"module", "state"},
	)
)

// Register registers all collectors with r. Safe to call multiple times;
// subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{applies, reverts, applyDuration, moduleState}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveApply records one apply attempt.
func ObserveApply(module, outcome string, d time.Duration) {
	applies.WithLabelValues(module, outcome).Inc()
	applyDuration.WithLabelValues(module).Observe(d.Seconds())
}

// ObserveRevert records one revert attempt.
func ObserveRevert(module, outcome string) {
	reverts.WithLabelValues(module, outcome).Inc()
}

// SetState marks the current state of a module, clearing other states.
func SetState(module, state string) {
	for _, s := range []string{"not_applied", "applying", "applied", "apply_failed", "reverting", "reverted"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		moduleState.WithLabelValues(module, s).Set(v)
	}
}
