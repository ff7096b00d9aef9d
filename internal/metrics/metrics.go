// Package metrics defines the Prometheus collectors exported by the bot.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "phoenix"

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the bot's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	interactions      *prometheus.CounterVec
	handledErrors     *prometheus.CounterVec
	operatorAlerts    *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	restDuration      *prometheus.HistogramVec
	gatewayReconnects prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "interactions_total",
			Help:      "Count of handled interactions",
		}, []string{"type", "command", "outcome"}),

		handledErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "errors_total",
			Help:      "Count of command errors by kind",
		}, []string{"kind"}),

		operatorAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "operator_alerts_total",
			Help:      "Count of unhandled error alerts sent to operators",
		}, []string{"outcome"}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Count of cache lookups by result",
		}, []string{"cache", "result"}),

		restDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discord",
			Name:      "rest_request_duration_seconds",
			Help:      "Latency distribution of Discord REST requests",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),

		gatewayReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "reconnects_total",
			Help:      "Count of gateway reconnect attempts",
		}),
	}

	collectors := []prometheus.Collector{
		m.interactions,
		m.handledErrors,
		m.operatorAlerts,
		m.cacheLookups,
		m.restDuration,
		m.gatewayReconnects,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// ObserveInteraction counts one handled interaction
func (m *Metrics) ObserveInteraction(interactionType, command, outcome string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(interactionType, command, outcome).Inc()
}

// ObserveHandledError counts one command error of the given kind
func (m *Metrics) ObserveHandledError(kind string) {
	if m == nil {
		return
	}
	m.handledErrors.WithLabelValues(kind).Inc()
}

// ObserveAlert counts one operator alert attempt
func (m *Metrics) ObserveAlert(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "fail"
	}
	m.operatorAlerts.WithLabelValues(outcome).Inc()
}

// ObserveCacheLookup counts one cache lookup
func (m *Metrics) ObserveCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveRESTRequest records the latency of one Discord REST request.
// status is 0 when no response was received.
func (m *Metrics) ObserveRESTRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.restDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(took.Seconds())
}

// ObserveGatewayReconnect counts one reconnect attempt
func (m *Metrics) ObserveGatewayReconnect() {
	if m == nil {
		return
	}
	m.gatewayReconnects.Inc()
}
