// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnAllocTotal counts successful connection allocations
	ConnAllocTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpan_agent_conn_alloc_total",
			Help: "Total number of connection slots allocated",
		},
	)

	// ConnFreeTotal counts connections returned to the pool
	ConnFreeTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpan_agent_conn_free_total",
			Help: "Total number of connection slots freed",
		},
	)

	// ConnExhaustedTotal counts allocations rejected because the pool was full
	ConnExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpan_agent_conn_exhausted_total",
			Help: "Total number of allocations rejected due to pool exhaustion",
		},
	)

	// ConnActive tracks the current number of active connections
	ConnActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wpan_agent_conn_active",
			Help: "Current number of active connections in the registry",
		},
	)

	// DemuxLookupsTotal counts demultiplexer lookups by outcome
	DemuxLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpan_agent_demux_lookups_total",
			Help: "Total number of demultiplexer lookups",
		},
		[]string{"result"}, // match | miss
	)

	// DemuxFaultsTotal counts demux scans aborted on a corrupt slot
	DemuxFaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpan_agent_demux_faults_total",
			Help: "Total number of demux scans aborted due to a corrupt remote address tag",
		},
	)

	// FramesDeliveredTotal counts frames enqueued to a socket receive queue
	FramesDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpan_agent_frames_delivered_total",
			Help: "Total number of inbound frames delivered to a socket",
		},
	)

	// FramesDroppedTotal counts inbound frames dropped by reason
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpan_agent_frames_dropped_total",
			Help: "Total number of inbound frames dropped",
		},
		[]string{"reason"}, // no_match | backlog | decode
	)

	// ReplayFramesTotal counts frames injected by the pcap replay source
	ReplayFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpan_agent_replay_frames_total",
			Help: "Total number of frames read from the replay source",
		},
	)
)

// Drop reasons for FramesDroppedTotal.
const (
	DropNoMatch = "no_match"
	DropBacklog = "backlog"
	DropDecode  = "decode"
)
