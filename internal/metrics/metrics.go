package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the collectors for study conversion and the HTTP API.
type Registry struct {
	registry *prometheus.Registry

	ConversionsTotal    *prometheus.CounterVec
	BuildDuration       prometheus.Histogram
	StudyNodes          prometheus.Histogram
	StudyEdges          prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.ConversionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magegraph_conversions_total",
			Help: "Study documents processed, by outcome",
		},
		[]string{"status"},
	)
	r.BuildDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "magegraph_build_duration_seconds",
		Help:    "Time spent building a study graph from a parsed document",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	r.StudyNodes = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "magegraph_study_nodes",
		Help:    "Nodes per built study",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	r.StudyEdges = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "magegraph_study_edges",
		Help:    "Edges per built study",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	r.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magegraph_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)
	r.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "magegraph_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	return r
}

// RecordBuild records a successful study build.
func (r *Registry) RecordBuild(duration time.Duration, nodes, edges int) {
	r.ConversionsTotal.WithLabelValues("ok").Inc()
	r.BuildDuration.Observe(duration.Seconds())
	r.StudyNodes.Observe(float64(nodes))
	r.StudyEdges.Observe(float64(edges))
}

// RecordFailure records a document that could not be built. reason is a
// short label such as "structure" or "parse".
func (r *Registry) RecordFailure(reason string) {
	r.ConversionsTotal.WithLabelValues(reason).Inc()
}

func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
