// Package prometheus provides the Prometheus-backed implementation of the
// chat server metrics interfaces.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/relaychat/pkg/metrics"
)

// chatMetrics is the Prometheus implementation of metrics.ChatMetrics.
type chatMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge

	logins         prometheus.Counter
	loginsRejected *prometheus.CounterVec

	broadcasts        prometheus.Counter
	broadcastsPartial prometheus.Counter
	whispers          prometheus.Counter

	transfersStarted   prometheus.Counter
	transfersCompleted prometheus.Counter
	transfersFailed    prometheus.Counter
	transferBytes      prometheus.Counter

	roomCount  prometheus.Gauge
	queueDepth prometheus.Gauge
}

// NewChatMetrics creates a Prometheus-backed ChatMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); callers
// pass the nil straight through and recording becomes a no-op.
func NewChatMetrics() metrics.ChatMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &chatMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_connections_accepted_total",
			Help: "Total number of accepted TCP connections",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_connections_closed_total",
			Help: "Total number of closed connections",
		}),
		connectionsForceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_connections_force_closed_total",
			Help: "Connections force-closed after the shutdown grace expired",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_active_connections",
			Help: "Current number of active connections",
		}),
		logins: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_logins_total",
			Help: "Total number of successful logins",
		}),
		loginsRejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "relaychat_logins_rejected_total",
			Help: "Total number of rejected login attempts by reason",
		}, []string{"reason"}), // "invalid", "taken"
		broadcasts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_broadcasts_total",
			Help: "Total number of room broadcasts",
		}),
		broadcastsPartial: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_broadcasts_partial_total",
			Help: "Broadcasts that reached only part of the room",
		}),
		whispers: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_whispers_total",
			Help: "Total number of delivered whispers",
		}),
		transfersStarted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_transfers_started_total",
			Help: "Total number of admitted file transfers",
		}),
		transfersCompleted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_transfers_completed_total",
			Help: "Total number of completed file transfers",
		}),
		transfersFailed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_transfers_failed_total",
			Help: "Total number of failed or aborted file transfers",
		}),
		transferBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relaychat_transfer_bytes_total",
			Help: "Total file payload bytes delivered to receivers",
		}),
		roomCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_rooms",
			Help: "Current number of rooms",
		}),
		queueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "relaychat_transfer_queue_depth",
			Help: "Current number of tickets in the transfer queue",
		}),
	}
}

func (m *chatMetrics) RecordConnectionAccepted()    { m.connectionsAccepted.Inc() }
func (m *chatMetrics) RecordConnectionClosed()      { m.connectionsClosed.Inc() }
func (m *chatMetrics) RecordConnectionForceClosed() { m.connectionsForceClosed.Inc() }

func (m *chatMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *chatMetrics) RecordLogin() { m.logins.Inc() }

func (m *chatMetrics) RecordLoginRejected(reason string) {
	m.loginsRejected.WithLabelValues(reason).Inc()
}

func (m *chatMetrics) RecordBroadcast(delivered, recipients int) {
	m.broadcasts.Inc()
	if delivered < recipients {
		m.broadcastsPartial.Inc()
	}
}

func (m *chatMetrics) RecordWhisper() { m.whispers.Inc() }

func (m *chatMetrics) RecordTransferStarted() { m.transfersStarted.Inc() }

func (m *chatMetrics) RecordTransferCompleted(bytes int) {
	m.transfersCompleted.Inc()
	m.transferBytes.Add(float64(bytes))
}

func (m *chatMetrics) RecordTransferFailed() { m.transfersFailed.Inc() }

func (m *chatMetrics) SetRoomCount(count int) { m.roomCount.Set(float64(count)) }

func (m *chatMetrics) SetQueueDepth(count int) { m.queueDepth.Set(float64(count)) }
