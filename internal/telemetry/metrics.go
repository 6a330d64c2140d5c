// Package telemetry holds the Prometheus metrics exported by the daemon.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatch",
		Subsystem: "analysis",
		Name:      "tasks_submitted_total",
		Help:      "Total analysis tasks accepted, labelled by report type.",
	}, []string{"report_type"})

	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatch",
		Subsystem: "analysis",
		Name:      "tasks_finished_total",
		Help:      "Total analysis tasks that reached a terminal status.",
	}, []string{"status"})

	TasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stockwatch",
		Subsystem: "analysis",
		Name:      "tasks_running",
		Help:      "Analysis tasks currently executing.",
	})

	TaskDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stockwatch",
		Subsystem: "analysis",
		Name:      "task_duration_seconds",
		Help:      "Pipeline execution time in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	QuoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatch",
		Subsystem: "quote",
		Name:      "requests_total",
		Help:      "Quote provider requests, labelled by outcome.",
	}, []string{"outcome"})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
