// Package metrics provides Prometheus instrumentation for requirement builds.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for builds.
type Metrics struct {
	// Builds by outcome: "ok", "failed".
	Builds *prometheus.CounterVec

	// Full build latency, both phases and rendering
	BuildDuration prometheus.Histogram

	// Documents processed by result: "parsed", "cached", "failed".
	Documents *prometheus.CounterVec

	// Current registry size after the last build
	Requirements prometheus.Gauge

	// Current reference occurrences after the last build
	References prometheus.Gauge

	// Unresolved references after the last build
	Unresolved prometheus.Gauge

	// Listing queries that failed in the last build
	ListingErrors prometheus.Gauge

	// Entities published to NATS
	Published prometheus.Counter
}

// New creates Metrics registered with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Builds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "semreq_builds_total",
			Help: "Total builds by outcome",
		}, []string{"outcome"}),

		BuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "semreq_build_duration_seconds",
			Help:    "Duration of a full build including rendering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "semreq_documents_total",
			Help: "Documents processed by result",
		}, []string{"result"}),

		Requirements: f.NewGauge(prometheus.GaugeOpts{
			Name: "semreq_requirements",
			Help: "Requirements registered by the last build",
		}),

		References: f.NewGauge(prometheus.GaugeOpts{
			Name: "semreq_references",
			Help: "Reference occurrences tracked by the last build",
		}),

		Unresolved: f.NewGauge(prometheus.GaugeOpts{
			Name: "semreq_unresolved_references",
			Help: "References without a registered target in the last build",
		}),

		ListingErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "semreq_listing_errors",
			Help: "Listing queries that failed in the last build",
		}),

		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "semreq_published_entities_total",
			Help: "Requirement entities published to the graph",
		}),
	}
}

// Summary is the outcome of one build.
type Summary struct {
	Requirements  int
	References    int
	Unresolved    int
	ListingErrors int
}

// ObserveBuild records a finished build.
func (m *Metrics) ObserveBuild(d time.Duration, s Summary, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.Builds.WithLabelValues(outcome).Inc()
	m.BuildDuration.Observe(d.Seconds())
	if err != nil {
		return
	}
	m.Requirements.Set(float64(s.Requirements))
	m.References.Set(float64(s.References))
	m.Unresolved.Set(float64(s.Unresolved))
	m.ListingErrors.Set(float64(s.ListingErrors))
}

// IncrementDocument records a processed document.
func (m *Metrics) IncrementDocument(result string) {
	if m != nil {
		m.Documents.WithLabelValues(result).Inc()
	}
}

// AddPublished records published entities.
func (m *Metrics) AddPublished(n int) {
	if m != nil {
		m.Published.Add(float64(n))
	}
}
