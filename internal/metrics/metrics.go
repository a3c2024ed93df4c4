package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcaster metrics
var (
	// ActiveChannels tracks the number of channels with at least one subscriber
	ActiveChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_active_channels",
			Help: "Number of active broadcast channels",
		},
	)

	// ConnectedSubscribers tracks open streams across all channels
	ConnectedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_subscribers_total",
			Help: "Total number of open subscriber streams across all channels",
		},
	)

	// FramesPublishedTotal tracks fanned-out frames by frame type
	FramesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcaster_frames_published_total",
			Help: "Total frames published by frame type",
		},
		[]string{"type"},
	)

	// FramesDroppedTotal tracks publishes that could not be delivered
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcaster_frames_dropped_total",
			Help: "Total publishes dropped because no home loop could deliver them",
		},
		[]string{"reason"},
	)

	// HeartbeatsSentTotal tracks synthetic heartbeat frames sent to idle streams
	HeartbeatsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_heartbeats_sent_total",
			Help: "Total heartbeat frames sent on idle streams",
		},
	)
)

// Presence metrics
var (
	// PresenceCallbackFailures tracks presence callbacks that returned an error or panicked
	PresenceCallbackFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_callback_failures_total",
			Help: "Total presence callback invocations that failed",
		},
	)

	// PresenceCallbackDuration tracks presence callback latency in seconds
	PresenceCallbackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presence_callback_duration_seconds",
			Help:    "Presence callback duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Server metrics
var (
	// ConnectionsRejectedTotal tracks stream connections rejected by the limiter
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "server_connections_rejected_total",
			Help: "Total stream connections rejected by reason",
		},
		[]string{"reason"},
	)

	// StreamDuration tracks how long subscriber streams stay open in seconds
	StreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "server_stream_duration_seconds",
			Help:    "Duration of completed subscriber streams in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)
)
