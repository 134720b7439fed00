package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatterd_messages_total",
		Help: "Messages accepted, labeled by their initial delivery status.",
	}, []string{"status"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatterd_status_transitions_total",
		Help: "Delivery status advances applied after the initial send.",
	}, []string{"to"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatterd_events_total",
		Help: "Inbound websocket events by type, including dropped ones.",
	}, []string{"type"})

	connectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatterd_connections_total",
		Help: "Websocket connections accepted since start.",
	})

	onlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatterd_online_users",
		Help: "Identities currently present (at least one live session).",
	})

	storedMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatterd_stored_messages",
		Help: "Messages currently held in the history store.",
	})

	registeredUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatterd_registered_users",
		Help: "Account records currently held in the store.",
	})
)

// MessageSent records one accepted send with its computed status.
func MessageSent(status string) { messagesTotal.WithLabelValues(status).Inc() }

// StatusAdvanced records one forward status transition.
func StatusAdvanced(to string) { transitionsTotal.WithLabelValues(to).Inc() }

// Event records one inbound websocket event.
func Event(typ string) { eventsTotal.WithLabelValues(typ).Inc() }

// ConnectionOpened records one accepted websocket connection.
func ConnectionOpened() { connectionsTotal.Inc() }

// SetOnlineUsers updates the presence gauge.
func SetOnlineUsers(n int) { onlineUsers.Set(float64(n)) }

// SetStoreCounts updates the store gauges; refreshed by the
// maintenance sweep.
func SetStoreCounts(users, messages int) {
	registeredUsers.Set(float64(users))
	storedMessages.Set(float64(messages))
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
