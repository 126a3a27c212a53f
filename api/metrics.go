package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tailplane/model"
)

var (
	// MetricReloads counts descriptor reloads by outcome
	MetricReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tailplane_reloads_total",
		Help: "Total descriptor reloads by outcome",
	}, []string{"outcome"})

	// MetricLoadFailures counts reloads that could not parse the file
	MetricLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tailplane_load_failures_total",
		Help: "Total descriptor loads that failed",
	})

	// MetricDiagnostics tracks the findings of the current descriptor
	MetricDiagnostics = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tailplane_descriptor_diagnostics",
		Help: "Validation findings of the current descriptor by severity",
	}, []string{"severity"})

	// MetricWSClients tracks connected websocket clients
	MetricWSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tailplane_ws_clients",
		Help: "Current websocket clients",
	})
)

func recordSnapshot(snap *model.Snapshot) {
	if snap.LoadError != "" {
		MetricLoadFailures.Inc()
		MetricReloads.WithLabelValues("failed").Inc()
		return
	}
	if snap.OK() {
		MetricReloads.WithLabelValues("ok").Inc()
	} else {
		MetricReloads.WithLabelValues("invalid").Inc()
	}
	MetricDiagnostics.WithLabelValues("error").Set(float64(len(snap.Errors)))
	MetricDiagnostics.WithLabelValues("warning").Set(float64(len(snap.Warnings)))
}
