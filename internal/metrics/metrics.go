package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcher",
			Name:      "session_events_total",
			Help:      "Count of download session events emitted to the orchestrator.",
		},
		[]string{"type"},
	)

	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcher",
			Name:      "state_transitions_total",
			Help:      "Count of update state machine transitions by target state.",
		},
		[]string{"to"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "launcher",
			Name:      "active_sessions",
			Help:      "Number of download sessions with a running engine.",
		},
	)

	DownloadPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "launcher",
			Name:      "download_percent",
			Help:      "Completion of the current update download in percent.",
		},
	)

	TransferRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "launcher",
			Name:      "transfer_rate_bytes",
			Help:      "Current transfer rate in bytes per second.",
		},
		[]string{"direction"},
	)

	Aria2RPCErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcher",
			Name:      "aria2_rpc_errors_total",
			Help:      "Errors from aria2 JSON-RPC calls.",
		},
		[]string{"method"},
	)

	Aria2RPCLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "launcher",
			Name:      "aria2_rpc_latency_seconds",
			Help:      "Latency of aria2 JSON-RPC calls.",
		},
		[]string{"method"},
	)

	RemoteFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcher",
			Name:      "remote_fetch_errors_total",
			Help:      "Failed fetches of the remote version marker or news feed.",
		},
		[]string{"kind"},
	)
)

// Register registers the launcher metrics into the default registry.
func Register() {
	prometheus.MustRegister(SessionEvents, StateTransitions, ActiveSessions, DownloadPercent,
		TransferRate, Aria2RPCErrors, Aria2RPCLatency, RemoteFetchErrors)
}
