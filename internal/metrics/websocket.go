package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for the broadcast gateway.
type WebSocketMetrics struct {
	Connections      prometheus.Gauge
	Commands         *prometheus.CounterVec
	DroppedClients   prometheus.Counter
	MessagesEnqueued prometheus.Counter
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_commands_total",
			Help:      "Commands received over websocket, by type and outcome.",
		}, []string{"command", "outcome"}),
		DroppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_dropped_clients_total",
			Help:      "Connections closed because their send buffer was full.",
		}),
		MessagesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_enqueued_total",
			Help:      "Messages queued for delivery to connections.",
		}),
	}

	reg.MustRegister(m.Connections, m.Commands, m.DroppedClients, m.MessagesEnqueued)
	return m
}
