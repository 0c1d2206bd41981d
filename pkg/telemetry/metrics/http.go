package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics tracks API traffic per route.
//
// Metrics:
//   - guardrails_http_requests_total: Requests by route, method and status code
//   - guardrails_http_request_duration_seconds: Request latency by route
//   - guardrails_http_requests_in_flight: Requests being served
type HTTPMetrics struct {
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inFlight      prometheus.Gauge
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(namespace string, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests being served",
			},
		),
	}

	registry.MustRegister(hm.requestsTotal, hm.duration, hm.inFlight)
	return hm
}

// Instrument wraps h so its traffic is recorded under route.
func (hm *HTTPMetrics) Instrument(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	h = promhttp.InstrumentHandlerDuration(hm.duration.MustCurryWith(labels), h)
	h = promhttp.InstrumentHandlerCounter(hm.requestsTotal.MustCurryWith(labels), h)
	return promhttp.InstrumentHandlerInFlight(hm.inFlight, h)
}
