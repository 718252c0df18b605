// Package metrics provides the Prometheus instrumentation of the collector and the server exposing it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes instruments the HTTP routes of the collector.
type Routes struct {
	registry prometheus.Registerer
	buckets  []float64
	inFlight prometheus.Gauge
}

// NewRoutes creates the route instrumentation, registering its metrics in registry.
func NewRoutes(registry prometheus.Registerer) *Routes {
	return &Routes{
		registry: registry,
		// Storing a report is a local write: anything above a second is already slow. Max of 10.24s.
		buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		inFlight: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "collector_http_requests_in_flight",
			Help: "Number of HTTP requests being served.",
		}),
	}
}

// Instrument returns h counting its requests, their latency and their size under the route label.
//
// Each route is instrumented once. Methods sharing a route, like POST and PUT on the DMARC endpoint,
// are told apart by the method label. Route labels are fixed at startup so they don't depend on client input.
func (m *Routes) Instrument(route string, h http.Handler) http.Handler {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"route": route}, m.registry)
	labels := []string{"method", "code"}

	requests := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "collector_http_requests_total",
		Help: "Number of HTTP requests by route, method and status code.",
	}, labels)
	duration := promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_http_request_duration_seconds",
		Help:    "Latency of HTTP requests by route, method and status code.",
		Buckets: m.buckets,
	}, labels)
	size := promauto.With(reg).NewSummaryVec(prometheus.SummaryOpts{
		Name: "collector_http_request_size_bytes",
		Help: "Size of HTTP requests by route, method and status code.",
	}, labels)

	return promhttp.InstrumentHandlerInFlight(m.inFlight,
		promhttp.InstrumentHandlerCounter(requests,
			promhttp.InstrumentHandlerDuration(duration,
				promhttp.InstrumentHandlerRequestSize(size, h))))
}
