package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// connectedClients is the number of open console sockets.
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anticrime_relay_connected_clients",
		Help: "Open WebSocket clients",
	})

	// framesIn counts inbound device frames by type and outcome.
	framesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anticrime_relay_frames_in_total",
		Help: "Inbound device frames by type and result",
	}, []string{"type", "result"})

	// eventsBroadcast counts notifications fanned out to clients.
	eventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anticrime_relay_events_broadcast_total",
		Help: "Notifications broadcast to clients by type",
	}, []string{"type"})

	// droppedClients counts clients disconnected for falling behind.
	droppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anticrime_relay_dropped_clients_total",
		Help: "Clients disconnected because their send buffer was full",
	})
)
