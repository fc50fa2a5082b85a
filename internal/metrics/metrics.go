// Package metrics exposes pipeline counters through Prometheus. One Metrics
// value is shared by the pipeline and the HTTP server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	EventsScraped   prometheus.Counter
	DetailRequests  prometheus.Counter
	EventsSaved     *prometheus.CounterVec
	EventsDuplicate prometheus.Counter
	EventsFailed    prometheus.Counter
	Enhancements    prometheus.Counter
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsScraped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventscout_events_scraped_total",
			Help: "Event summaries scraped from listings and the sheet feed.",
		}),
		DetailRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventscout_detail_requests_total",
			Help: "Detail page fetches attempted.",
		}),
		EventsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventscout_events_saved_total",
			Help: "Events written to storage, by collection.",
		}, []string{"collection"}),
		EventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventscout_events_duplicate_total",
			Help: "Insert attempts rejected by the uniqueness constraint.",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventscout_events_failed_total",
			Help: "Insert attempts that failed for non-duplicate reasons.",
		}),
		Enhancements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventscout_enhancements_total",
			Help: "Copy enhancements generated.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventscout_runs_total",
			Help: "Pipeline runs, by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventscout_run_duration_seconds",
			Help:    "Wall-clock duration of pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	reg.MustRegister(
		m.EventsScraped, m.DetailRequests, m.EventsSaved, m.EventsDuplicate,
		m.EventsFailed, m.Enhancements, m.RunsTotal, m.RunDuration,
	)
	return m
}

// NewUnregistered creates collectors without a registry. Used in tests and
// in one-shot CLI runs where nothing scrapes them.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
