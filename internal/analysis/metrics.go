package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	analyses *prometheus.CounterVec
	issues   *prometheus.CounterVec
	failures *prometheus.CounterVec
	alerts   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the analysis collectors on reg. A nil reg gets a
// private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign_health",
			Name:      "analyses_total",
			Help:      "Completed campaign analyses by recommended action.",
		}, []string{"action"}),
		issues: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign_health",
			Name:      "issues_total",
			Help:      "Issues raised by type.",
		}, []string{"type"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign_health",
			Name:      "analysis_failures_total",
			Help:      "Analyses that returned an error, by reason.",
		}, []string{"reason"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campaign_health",
			Name:      "alerts_total",
			Help:      "Sweep alerts by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "campaign_health",
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing one campaign series.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}
