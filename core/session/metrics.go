package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the session collectors.
type MetricsConfig struct {
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
	Registry    prometheus.Registerer
}

// MetricsOption configures MetricsConfig.
type MetricsOption func(*MetricsConfig)

// WithMetricsNamespace sets the metrics namespace.
func WithMetricsNamespace(ns string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = ns
	}
}

// WithMetricsRegistry sets the registerer the collectors are added to.
func WithMetricsRegistry(reg prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		if reg != nil {
			c.Registry = reg
		}
	}
}

// WithMetricsConstLabels sets constant labels for all collectors.
func WithMetricsConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// Metrics holds the Prometheus collectors for session lifecycle events.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	persistFailures      *prometheus.CounterVec
	decodeFailures       prometheus.Counter
	rotations            prometheus.Counter
	rotationVerifyFailed prometheus.Counter
	driftWarnings        prometheus.Counter
	gcRemoved            prometheus.Counter
	notifyFailures       *prometheus.CounterVec
}

// NewMetrics registers the session collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{
		Namespace: "wallpaper",
		Subsystem: "session",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		persistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "persistence_failures_total",
			Help:        "Session store failures by operation",
			ConstLabels: cfg.ConstLabels,
		}, []string{"op"}),
		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "decode_failures_total",
			Help:        "Session payloads that failed to decode",
			ConstLabels: cfg.ConstLabels,
		}),
		rotations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "rotations_total",
			Help:        "Session identifier rotations after login",
			ConstLabels: cfg.ConstLabels,
		}),
		rotationVerifyFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "rotation_verification_failures_total",
			Help:        "Rotations whose bound fields were missing afterwards",
			ConstLabels: cfg.ConstLabels,
		}),
		driftWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "drift_warnings_total",
			Help:        "Requests whose IP or user agent differed from the stored session",
			ConstLabels: cfg.ConstLabels,
		}),
		gcRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "gc_removed_total",
			Help:        "Expired sessions removed by garbage collection",
			ConstLabels: cfg.ConstLabels,
		}),
		notifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "notify_failures_total",
			Help:        "Audit notifications that failed",
			ConstLabels: cfg.ConstLabels,
		}, []string{"event"}),
	}
}

func (m *Metrics) persistFailed(op string) {
	if m != nil {
		m.persistFailures.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) decodeFailed() {
	if m != nil {
		m.decodeFailures.Inc()
	}
}

func (m *Metrics) rotated() {
	if m != nil {
		m.rotations.Inc()
	}
}

func (m *Metrics) rotationVerifyFailure() {
	if m != nil {
		m.rotationVerifyFailed.Inc()
	}
}

func (m *Metrics) drift() {
	if m != nil {
		m.driftWarnings.Inc()
	}
}

func (m *Metrics) removed(n int64) {
	if m != nil && n > 0 {
		m.gcRemoved.Add(float64(n))
	}
}

func (m *Metrics) notifyFailed(event string) {
	if m != nil {
		m.notifyFailures.WithLabelValues(event).Inc()
	}
}
