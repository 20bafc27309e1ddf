package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	bootstrapAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidecar",
			Subsystem: "bootstrap",
			Name:      "attempts_total",
			Help:      "Number of completed bootstrap attempts by trigger and outcome.",
		}, []string{"trigger", "status", "launch_mode"},
	)
	probeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sidecar",
			Subsystem: "health",
			Name:      "probe_failures_total",
			Help:      "Number of failed single health probes.",
		},
	)
	healthWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sidecar",
			Subsystem: "health",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for the runtime to become healthy.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 7, 10},
		}, []string{"result"},
	)
	runtimeAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sidecar",
			Subsystem: "runtime",
			Name:      "available",
			Help:      "1 when the managed runtime passed its health check, 0 otherwise.",
		},
	)
	processInstalls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sidecar",
			Subsystem: "process",
			Name:      "installs_total",
			Help:      "Number of processes installed into the managed slot.",
		},
	)
	processStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sidecar",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of managed processes terminated and reaped.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{bootstrapAttempts, probeFailures, healthWait, runtimeAvailable, processInstalls, processStops}
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncBootstrap(trigger, status, launchMode string) {
	if regOK.Load() {
		bootstrapAttempts.WithLabelValues(trigger, status, launchMode).Inc()
	}
}

func IncProbeFailure() {
	if regOK.Load() {
		probeFailures.Inc()
	}
}

func ObserveHealthWait(seconds float64, healthy bool) {
	if regOK.Load() {
		result := "timeout"
		if healthy {
			result = "healthy"
		}
		healthWait.WithLabelValues(result).Observe(seconds)
	}
}

func SetAvailable(available bool) {
	if regOK.Load() {
		var v float64
		if available {
			v = 1
		}
		runtimeAvailable.Set(v)
	}
}

func IncInstall() {
	if regOK.Load() {
		processInstalls.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		processStops.Inc()
	}
}
