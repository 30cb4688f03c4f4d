// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - WebSocket connections and message throughput
// - Room lifecycle and membership
// - Event routing latency and outcomes
// - Media probing (ffprobe) and thumbnail generation
// - API endpoint latency and throughput

var (
	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_broadcasts_total",
			Help: "Total number of room broadcasts by event type",
		},
		[]string{"event"},
	)

	WSSendDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_send_drops_total",
			Help: "Total number of messages dropped due to full client send buffers",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Room Metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active",
			Help: "Current number of active rooms",
		},
	)

	RoomViewers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_viewers",
			Help: "Current number of members across all rooms",
		},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rooms_created_total",
			Help: "Total number of rooms created",
		},
	)

	RoomsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rooms_deleted_total",
			Help: "Total number of rooms deleted by their admin",
		},
	)

	// Event Routing Metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_total",
			Help: "Total number of client events routed",
		},
		[]string{"command", "outcome"}, // outcome: "ok", "invalid", "rejected", "rate_limited", "unknown", "error"
	)

	EventHandlingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_handling_duration_seconds",
			Help:    "Duration of event handler execution in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}, // Handlers are lock-bound, sub-millisecond typical
		},
		[]string{"command"},
	)

	RateLimitCooldowns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_cooldowns_total",
			Help: "Total number of clients placed in rate-limit cooldown",
		},
	)

	// Local File Matching and Chat Metrics
	BSLChecksRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bsl_checks_requested_total",
			Help: "Total number of local-file check rounds started by admins",
		},
	)

	BSLReportsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bsl_reports_received_total",
			Help: "Total number of client folder reports received",
		},
	)

	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages relayed",
		},
	)

	// Media Probe Metrics
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_probe_duration_seconds",
			Help:    "Duration of ffprobe invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProbeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_probe_errors_total",
			Help: "Total number of ffprobe failures",
		},
		[]string{"error_type"},
	)

	ThumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_thumbnail_duration_seconds",
			Help:    "Duration of thumbnail generation in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, // ffmpeg frame extraction can take tens of seconds
		},
	)

	ThumbnailErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_thumbnail_errors_total",
			Help: "Total number of thumbnail generation failures",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Optimized for API latency
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "files", "probe"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordEvent records a routed client event and its handling duration
func RecordEvent(command, outcome string, duration time.Duration) {
	EventsTotal.WithLabelValues(command, outcome).Inc()
	EventHandlingDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordBroadcast records a room broadcast by event type
func RecordBroadcast(event string) {
	WSBroadcasts.WithLabelValues(event).Inc()
}

// RecordProbe records an ffprobe invocation metric
func RecordProbe(duration time.Duration, err error) {
	ProbeDuration.Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		ProbeErrors.WithLabelValues(errorType).Inc()
	}
}

// RecordThumbnail records a thumbnail generation metric
func RecordThumbnail(duration time.Duration, err error) {
	ThumbnailDuration.Observe(duration.Seconds())
	if err != nil {
		ThumbnailErrors.Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// TrackConnection tracks active WebSocket connections
func TrackConnection(inc bool) {
	if inc {
		WSConnections.Inc()
	} else {
		WSConnections.Dec()
	}
}
