// Package metrics exposes the sentinel's Prometheus instrumentation.
//
// All metrics live on an explicit registry (never the global default) so
// tests can build throwaway collectors without registration conflicts.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gravityhq/sentinel/pkg/guard"
)

// Collector owns every Prometheus metric the sentinel records.
type Collector struct {
	registry *prometheus.Registry

	// Polling
	pollsTotal   *prometheus.CounterVec
	pollDuration prometheus.Histogram

	// Discovery
	discoveryAttemptsTotal *prometheus.CounterVec
	discoveryDuration      prometheus.Histogram

	// Guard
	guardLevel      prometheus.Gauge
	modelPercentage *prometheus.GaugeVec
	alertsTotal     *prometheus.CounterVec
	resetsTotal     prometheus.Counter
}

// NewCollector creates a collector registered on its own registry.
// If namespace is empty, defaults to "sentinel".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "sentinel"
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Status polls by outcome (success, error).",
		}, []string{"outcome"}),

		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of status polls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		discoveryAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_attempts_total",
			Help:      "Endpoint discovery runs by outcome (success, failure).",
		}, []string{"outcome"}),

		discoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Duration of endpoint discovery runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),

		guardLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "guard_level",
			Help:      "Current guard level (0=normal, 1=warning, 2=critical, 3=blocked).",
		}),

		modelPercentage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_remaining_percentage",
			Help:      "Remaining quota percentage per model.",
		}, []string{"model"}),

		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert decisions by level and outcome.",
		}, []string{"level", "outcome"}),

		resetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_resets_total",
			Help:      "Quota resets inferred from upward percentage jumps.",
		}),
	}

	registry.MustRegister(
		c.pollsTotal,
		c.pollDuration,
		c.discoveryAttemptsTotal,
		c.discoveryDuration,
		c.guardLevel,
		c.modelPercentage,
		c.alertsTotal,
		c.resetsTotal,
	)

	return c
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordPoll records one status poll.
func (c *Collector) RecordPoll(success bool, seconds float64) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	c.pollsTotal.WithLabelValues(outcome).Inc()
	c.pollDuration.Observe(seconds)
}

// RecordDiscovery records one discovery run.
func (c *Collector) RecordDiscovery(success bool, seconds float64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.discoveryAttemptsTotal.WithLabelValues(outcome).Inc()
	c.discoveryDuration.Observe(seconds)
}

// SetGuardLevel publishes the current guard level.
func (c *Collector) SetGuardLevel(level int) {
	c.guardLevel.Set(float64(level))
}

// SetModelPercentage publishes one model's remaining percentage.
func (c *Collector) SetModelPercentage(modelID string, percentage float64) {
	c.modelPercentage.WithLabelValues(modelID).Set(percentage)
}

// RecordAlert records one alert decision.
func (c *Collector) RecordAlert(level, outcome string) {
	c.alertsTotal.WithLabelValues(level, outcome).Inc()
}

// AlertSink adapts the collector to the guard's event sink so every
// alerting decision lands on alerts_total alongside the journal.
func (c *Collector) AlertSink() guard.EventSink {
	return alertSink{c}
}

type alertSink struct {
	collector *Collector
}

func (s alertSink) RecordAlert(_ context.Context, event guard.AlertEvent) {
	s.collector.RecordAlert(event.Level.String(), event.Outcome)
}

// RecordReset records one inferred quota reset.
func (c *Collector) RecordReset() {
	c.resetsTotal.Inc()
}
