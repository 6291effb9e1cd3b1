package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Settlement pipeline
	// ============================================
	DepositsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_deposits_dispatched_total",
			Help: "Deposits accepted by a balance locker and dispatched cross-chain",
		},
		[]string{"source_chain"},
	)

	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_messages_handled_total",
			Help: "Inbound messages by handling result (settled, duplicate, unmapped, unauthorized, error)",
		},
		[]string{"result"},
	)

	WithdrawalsRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_withdrawals_requested_total",
			Help: "Withdrawal requests accepted by the settlement manager",
		},
		[]string{"target_chain"},
	)

	ReleasesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_releases_handled_total",
			Help: "Release messages handled by a balance locker, by result",
		},
		[]string{"result"},
	)

	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_ledger_operations_total",
			Help: "Ledger lock/unlock operations from the matching engine",
		},
		[]string{"operation", "result"},
	)

	// ============================================
	// Transport
	// ============================================
	MailboxDispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_mailbox_dispatch_failures_total",
		Help: "Dispatch attempts rejected by the transport (deposit rolled back)",
	})

	// ============================================
	// HTTP / infra
	// ============================================
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_websocket_clients",
		Help: "Connected websocket event stream clients",
	})
)
