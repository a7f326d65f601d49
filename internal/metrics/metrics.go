// Package metrics exposes Prometheus instrumentation for the dev loop.
//
// Each Metrics owns its registry so several servers (and tests) can live in
// one process. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wasmreload"

// Metrics groups every collector the server records into.
type Metrics struct {
	registry *prometheus.Registry

	scans         *prometheus.CounterVec
	changes       prometheus.Counter
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	sharedBuilds  prometheus.Counter
	sessions      prometheus.Gauge
	messages      prometheus.Counter
	requests      *prometheus.CounterVec
}

// New creates a registry with the process and Go collectors plus the
// wasmreload collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Scan passes over the project tree by result",
			},
			[]string{"result"},
		),
		changes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_detected_total",
			Help:      "Scan passes that found a changed or new file",
		}),
		builds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Toolchain invocations by result",
			},
			[]string{"result"},
		),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time of toolchain invocations",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		sharedBuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_shared_total",
			Help:      "Artifact requests answered by a build another request started",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_sessions_active",
			Help:      "Open change-notification sessions",
		}),
		messages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_total",
			Help:      "Change queries answered over websocket",
		}),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// RegisterGauge exposes a value computed at scrape time, such as the dirty
// flag or the number of tracked files.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// ScanCompleted records one scan pass.
func (m *Metrics) ScanCompleted(changed bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.scans.WithLabelValues("error").Inc()
	case changed:
		m.scans.WithLabelValues("changed").Inc()
		m.changes.Inc()
	default:
		m.scans.WithLabelValues("unchanged").Inc()
	}
}

// BuildCompleted records one toolchain invocation.
func (m *Metrics) BuildCompleted(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.builds.WithLabelValues(result).Inc()
	m.buildDuration.Observe(d.Seconds())
}

// BuildShared records a request that joined an in-flight build.
func (m *Metrics) BuildShared() {
	if m == nil {
		return
	}
	m.sharedBuilds.Inc()
}

// SessionOpened increments the active websocket session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the active websocket session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// MessageAnswered counts one websocket reply.
func (m *Metrics) MessageAnswered() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

// RequestServed counts one HTTP response.
func (m *Metrics) RequestServed(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
