package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_active_connections",
		Help: "WebSocket connections currently held by this process.",
	})
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchmaking_matches_total",
		Help: "Total matches formed by this process.",
	})
	TicketsEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchmaking_tickets_enqueued_total",
		Help: "Total find_game requests that ended up waiting in a bucket.",
	})
	InvalidRatingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchmaking_invalid_ratings_total",
		Help: "find_game requests dropped for an out-of-range or non-integer rating.",
	})
	RelayDeliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_delivered_total",
		Help: "Relay payloads forwarded to a locally held connection.",
	})
	RelayDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_dropped_total",
		Help: "Relay payloads whose recipient was not connected to this process.",
	})
	SessionsReadyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_ready_total",
		Help: "Matches whose game session became reachable.",
	})
	SessionsExhaustedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_exhausted_total",
		Help: "Matches abandoned after the session poll budget ran out.",
	})
	SessionCreateFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_create_failures_total",
		Help: "Matches abandoned because session creation failed.",
	})
)

// Init registers every instrument with the default registry. Call once at boot.
func Init() {
	prometheus.MustRegister(
		ActiveConnections,
		MatchesTotal,
		TicketsEnqueuedTotal,
		InvalidRatingsTotal,
		RelayDeliveredTotal,
		RelayDroppedTotal,
		SessionsReadyTotal,
		SessionsExhaustedTotal,
		SessionCreateFailuresTotal,
	)
}
