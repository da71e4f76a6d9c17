package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the editor and HTTP collectors.
type Metrics struct {
	registry *prometheus.Registry

	Commands     *prometheus.CounterVec
	Rejections   *prometheus.CounterVec
	Saves        prometheus.Counter
	SavedSteps   prometheus.Histogram
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors under namespace and registers them
// on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "canvas_commands_total",
				Help:      "Canvas commands emitted to rendering surfaces",
			},
			[]string{"op"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejected_operations_total",
				Help:      "Editor operations rejected, by operation and reason",
			},
			[]string{"op", "reason"},
		),
		Saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_saved_total",
			Help:      "Flow documents written to the store",
		}),
		SavedSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_steps",
			Help:      "Number of steps in saved documents",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.Commands,
		m.Rejections,
		m.Saves,
		m.SavedSteps,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns editor hooks that record into m.
func (m *Metrics) Hooks() domain.EditorHooks {
	return domain.EditorHooks{
		OnCommand: func(_ context.Context, cmd domain.CanvasCommand) {
			m.Commands.WithLabelValues(string(cmd.Op)).Inc()
		},
		OnRejected: func(_ context.Context, op string, err error) {
			m.Rejections.WithLabelValues(op, Reason(err)).Inc()
		},
		OnSaved: func(_ context.Context, doc domain.FlowDocument) {
			m.Saves.Inc()
			m.SavedSteps.Observe(float64(len(doc.Steps)))
		},
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var reasons = []struct {
	err  error
	name string
}{
	// ErrSelfLoop wraps ErrCycleDetected, so it must come first.
	{domain.ErrSelfLoop, "self_loop"},
	{domain.ErrCycleDetected, "cycle"},
	{domain.ErrDuplicateEdge, "duplicate_edge"},
	{domain.ErrPortInUse, "port_in_use"},
	{domain.ErrUnknownPort, "unknown_port"},
	{domain.ErrNodeNotFound, "node_not_found"},
	{domain.ErrEdgeNotFound, "edge_not_found"},
	{domain.ErrMultipleRoots, "multiple_roots"},
	{domain.ErrDisconnected, "disconnected"},
	{domain.ErrAmbiguousBranch, "ambiguous_branch"},
	{domain.ErrUnboundNode, "unbound_node"},
	{domain.ErrEmptyDocument, "empty_document"},
	{domain.ErrDuplicateStep, "duplicate_step"},
	{domain.ErrInvalidStep, "invalid_step"},
	{domain.ErrUnknownKind, "unknown_kind"},
	{domain.ErrDocumentNotFound, "not_found"},
	{domain.ErrStore, "store"},
}

// Reason maps an editor error to a bounded label value.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "other"
}
