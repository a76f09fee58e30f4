package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics exposes counters/histograms for the tool-call webhook flows.
type WebhookMetrics struct {
	toolCallsTotal   *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	extractionTotal  *prometheus.CounterVec
	slotsOffered     prometheus.Histogram
	windowWidened    prometheus.Counter
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotbridge",
			Subsystem: "webhook",
			Name:      "toolcalls_total",
			Help:      "Total tool-call webhooks handled, by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotbridge",
			Subsystem: "calendar",
			Name:      "provider_requests_total",
			Help:      "Total calendar provider calls, by operation and HTTP status",
		}, []string{"operation", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slotbridge",
			Subsystem: "calendar",
			Name:      "provider_latency_seconds",
			Help:      "Latency of calendar provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		extractionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotbridge",
			Subsystem: "extraction",
			Name:      "requests_total",
			Help:      "Total date/time extraction attempts, by status",
		}, []string{"status"}),
		slotsOffered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slotbridge",
			Subsystem: "availability",
			Name:      "slots_offered",
			Help:      "Number of slots offered per availability lookup",
			Buckets:   []float64{0, 1, 2},
		}),
		windowWidened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slotbridge",
			Subsystem: "availability",
			Name:      "window_widened_total",
			Help:      "Availability lookups that retried with a wider window",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.toolCallsTotal, m.providerRequests, m.providerLatency, m.extractionTotal, m.slotsOffered, m.windowWidened)
	return m
}

func (m *WebhookMetrics) ObserveToolCall(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(endpoint, outcome).Inc()
}

func (m *WebhookMetrics) ObserveProviderCall(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(operation, status).Inc()
	m.providerLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *WebhookMetrics) ObserveExtraction(status string) {
	if m == nil {
		return
	}
	m.extractionTotal.WithLabelValues(status).Inc()
}

func (m *WebhookMetrics) ObserveSlotsOffered(n int) {
	if m == nil {
		return
	}
	m.slotsOffered.Observe(float64(n))
}

func (m *WebhookMetrics) ObserveWindowWidened() {
	if m == nil {
		return
	}
	m.windowWidened.Inc()
}
