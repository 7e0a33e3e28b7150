package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	issueTransitions *prometheus.CounterVec
	uploads          *prometheus.CounterVec
	actorDeletions   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		issueTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smrms_issue_transitions_total",
			Help: "Issue status changes, by target status.",
		}, []string{"to"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smrms_uploads_total",
			Help: "Object storage uploads, by kind and result.",
		}, []string{"kind", "result"}),
		actorDeletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smrms_actor_deletions_total",
			Help: "Actor deletions, by result.",
		}, []string{"result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smrms_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		m.issueTransitions,
		m.uploads,
		m.actorDeletions,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) IssueTransition(to string) {
	if m == nil {
		return
	}
	m.issueTransitions.WithLabelValues(to).Inc()
}

// ObserveUpload satisfies storage.Observer.
func (m *Metrics) ObserveUpload(kind, result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ActorDeletion(result string) {
	if m == nil {
		return
	}
	m.actorDeletions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
