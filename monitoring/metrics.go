package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sitepulse"

// Probe outcomes used as the "outcome" label of LinkProbesTotal.
const (
	OutcomeHealthy = "healthy"
	OutcomeBroken  = "broken"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PageFetchesTotal    *prometheus.CounterVec
	LinksExtractedTotal prometheus.Counter
	LinkProbesTotal     *prometheus.CounterVec
	LinkProbeDuration   prometheus.Histogram
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		PageFetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetches_total",
			Help:      "Top-level page fetches by backend and result.",
		}, []string{"backend", "result"}),
		LinksExtractedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_extracted_total",
			Help:      "Links produced by the link extractor.",
		}),
		LinkProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_probes_total",
			Help:      "Link status probes by outcome.",
		}, []string{"outcome"}),
		LinkProbeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_probe_duration_seconds",
			Help:      "Duration of individual link probes.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),
	}
}

func (m *Metrics) ObserveFetch(backend string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.PageFetchesTotal.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) ObserveProbe(outcome string, seconds float64) {
	m.LinkProbesTotal.WithLabelValues(outcome).Inc()
	m.LinkProbeDuration.Observe(seconds)
}
