// Package monitoring exposes Prometheus instrumentation for the event
// pipeline. All methods on Metrics are safe to call on a nil receiver so
// components can treat instrumentation as optional.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors used across the pipeline.
type Metrics struct {
	eventsDispatched prometheus.Counter
	eventsDelivered  prometheus.Counter
	eventsDropped    prometheus.Counter
	handlerErrors    prometheus.Counter
	queueDepth       prometheus.Gauge
	gateDecisions    *prometheus.CounterVec
	platformCalls    *prometheus.CounterVec
	platformLatency  *prometheus.HistogramVec
	serviceRestarts  *prometheus.CounterVec
	scoreTotal       prometheus.Histogram
}

// Options configures metrics construction.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "socialmesh".
	Namespace string
	// Registerer receives the collectors. Defaults to the global registry.
	Registerer prometheus.Registerer
}

// New creates and registers the pipeline collectors.
func New(optFns ...func(o *Options)) *Metrics {
	opts := Options{
		Namespace:  "socialmesh",
		Registerer: prometheus.DefaultRegisterer,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Metrics{
		eventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "events_dispatched_total",
			Help:      "Events accepted into the dispatch queue.",
		}),
		eventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "events_delivered_total",
			Help:      "Events handed to registered handlers.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "events_dropped_total",
			Help:      "Events rejected because the queue was at capacity.",
		}),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "handler_errors_total",
			Help:      "Handler invocations that returned an error or panicked.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Name:      "queue_depth",
			Help:      "Current number of events awaiting delivery.",
		}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "gate_decisions_total",
			Help:      "Gate evaluations by decision.",
		}, []string{"decision"}),
		platformCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "platform_calls_total",
			Help:      "Platform adapter calls by platform and result.",
		}, []string{"platform", "result"}),
		platformLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "platform_call_seconds",
			Help:      "Platform adapter call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform"}),
		serviceRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "service_restarts_total",
			Help:      "Supervised service restarts by service name.",
		}, []string{"service"}),
		scoreTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "value_score",
			Help:      "Distribution of composite value scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}

	opts.Registerer.MustRegister(
		m.eventsDispatched,
		m.eventsDelivered,
		m.eventsDropped,
		m.handlerErrors,
		m.queueDepth,
		m.gateDecisions,
		m.platformCalls,
		m.platformLatency,
		m.serviceRestarts,
		m.scoreTotal,
	)
	return m
}

// EventDispatched counts an event accepted into the queue.
func (m *Metrics) EventDispatched() {
	if m == nil {
		return
	}
	m.eventsDispatched.Inc()
}

// EventDelivered counts an event handed to its handlers.
func (m *Metrics) EventDelivered() {
	if m == nil {
		return
	}
	m.eventsDelivered.Inc()
}

// EventDropped counts an event rejected at capacity.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// HandlerError counts a failed or panicked handler invocation.
func (m *Metrics) HandlerError() {
	if m == nil {
		return
	}
	m.handlerErrors.Inc()
}

// SetQueueDepth records the current queue depth.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// GateDecision counts a gate evaluation outcome.
func (m *Metrics) GateDecision(decision string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(decision).Inc()
}

// PlatformCall counts a platform call and records its latency.
func (m *Metrics) PlatformCall(platform string, seconds float64, success bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	m.platformCalls.WithLabelValues(platform, result).Inc()
	m.platformLatency.WithLabelValues(platform).Observe(seconds)
}

// ServiceRestart counts a supervised service restart.
func (m *Metrics) ServiceRestart(service string) {
	if m == nil {
		return
	}
	m.serviceRestarts.WithLabelValues(service).Inc()
}

// ObserveScore records a composite value score.
func (m *Metrics) ObserveScore(total float64) {
	if m == nil {
		return
	}
	m.scoreTotal.Observe(total)
}
