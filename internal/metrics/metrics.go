// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DetectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prospector_detection_duration_seconds",
			Help:    "Duration of one detection pass over a page.",
			Buckets: prometheus.DefBuckets,
		},
	)
	AuditPolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prospector_audit_polls_total",
			Help: "Total audit status polls issued.",
		},
	)
	AuditOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospector_audit_outcomes_total",
			Help: "Terminal audit outcomes, labeled by status.",
		},
		[]string{"status"},
	)
	AnalysesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospector_analyses_processed_total",
			Help: "Analysis jobs processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	LeadsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospector_leads_submitted_total",
			Help: "Lead records returned by the CRM, labeled by tier.",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(DetectionDuration)
	prometheus.MustRegister(AuditPolls)
	prometheus.MustRegister(AuditOutcomes)
	prometheus.MustRegister(AnalysesProcessed)
	prometheus.MustRegister(LeadsSubmitted)
}

// Expose serves the Prometheus endpoint on its own listener.
func Expose(addr string) {
	slog.Info("exposing metrics", "address", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}
