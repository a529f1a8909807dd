package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Connection metrics
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge

	// Command metrics
	commandsTotal         *prometheus.CounterVec
	commandsRejectedTotal *prometheus.CounterVec

	// Message metrics
	messagesReceivedTotal *prometheus.CounterVec
	messagesSizeBytes     prometheus.Histogram
	bodiesTruncatedTotal  prometheus.Counter

	// Delivery metrics
	deliveriesTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2tg_connections_total",
			Help: "Total number of SMTP connections opened.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smtp2tg_connections_active",
			Help: "Number of currently active SMTP connections.",
		}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_commands_total",
			Help: "Total number of SMTP commands processed.",
		}, []string{"command"}),
		commandsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_commands_rejected_total",
			Help: "Total number of SMTP commands rejected.",
		}, []string{"command", "reason"}),

		messagesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_messages_received_total",
			Help: "Total number of messages received.",
		}, []string{"sender_domain"}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smtp2tg_messages_size_bytes",
			Help:    "Size of captured message bodies in bytes.",
			Buckets: []float64{128, 256, 512, 1024, 2048, 4096, 8192, 16384},
		}),
		bodiesTruncatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2tg_bodies_truncated_total",
			Help: "Total number of message bodies truncated at the configured cap.",
		}),

		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2tg_deliveries_total",
			Help: "Total number of notification delivery attempts.",
		}, []string{"result"}),
	}

	// Register all metrics
	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.commandsTotal,
		c.commandsRejectedTotal,
		c.messagesReceivedTotal,
		c.messagesSizeBytes,
		c.bodiesTruncatedTotal,
		c.deliveriesTotal,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// CommandProcessed increments the command counter.
func (c *PrometheusCollector) CommandProcessed(command string) {
	c.commandsTotal.WithLabelValues(command).Inc()
}

// CommandRejected increments the rejected command counter.
func (c *PrometheusCollector) CommandRejected(command string, reason string) {
	c.commandsRejectedTotal.WithLabelValues(command, reason).Inc()
}

// MessageReceived increments the message received counter and observes body size.
func (c *PrometheusCollector) MessageReceived(senderDomain string, sizeBytes int64) {
	c.messagesReceivedTotal.WithLabelValues(senderDomain).Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

// BodyTruncated increments the truncation counter.
func (c *PrometheusCollector) BodyTruncated() {
	c.bodiesTruncatedTotal.Inc()
}

// DeliveryCompleted increments the delivery counter.
func (c *PrometheusCollector) DeliveryCompleted(result string) {
	c.deliveriesTotal.WithLabelValues(result).Inc()
}
