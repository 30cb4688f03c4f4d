// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - WebSocket connection counts and message throughput
  - Room lifecycle (created, deleted, active) and membership
  - Event routing outcomes and handler latency
  - Media probing (ffprobe) and thumbnail generation
  - HTTP API latency and throughput
  - Cache hit/miss rates
  - Circuit breaker state transitions

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

WebSocket Metrics:
  - websocket_connections: Active connections (gauge)
  - websocket_messages_received_total: Messages received (counter)
  - websocket_messages_sent_total: Messages sent (counter)
  - websocket_broadcasts_total: Room broadcasts (counter)
    Labels: event
  - websocket_send_drops_total: Messages dropped on full send buffers (counter)
  - websocket_errors_total: WebSocket errors (counter)
    Labels: error_type

Room Metrics:
  - rooms_active: Active rooms (gauge)
  - room_viewers: Members across all rooms (gauge)
  - rooms_created_total: Rooms created (counter)
  - rooms_deleted_total: Rooms deleted (counter)
    Labels: reason (admin, empty)

Event Routing Metrics:
  - events_total: Client events routed (counter)
    Labels: command, outcome (ok, invalid, rejected, rate_limited, unknown, error)
  - event_handling_duration_seconds: Handler latency (histogram)
    Labels: command
    Buckets: .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1
  - rate_limit_cooldowns_total: Clients placed in cooldown (counter)

Media Metrics:
  - media_probe_duration_seconds: ffprobe latency (histogram)
  - media_probe_errors_total: ffprobe failures (counter)
    Labels: error_type
  - media_thumbnail_duration_seconds: Thumbnail generation latency (histogram)
  - media_thumbnail_errors_total: Thumbnail failures (counter)

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: Active requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)
    Labels: endpoint

Cache Metrics:
  - cache_hits_total, cache_misses_total, cache_entries, cache_evictions_total
    Labels: cache_type (files, probe)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests through breaker (counter)
    Labels: name, result
  - circuit_breaker_state_transitions_total: State transitions (counter)
    Labels: name, from_state, to_state

# Usage Example

Recording event routing metrics:

	start := time.Now()
	outcome := handle(client, envelope)
	metrics.RecordEvent(envelope.Data, outcome, time.Since(start))

Recording HTTP metrics with middleware:

	func MetricsMiddleware(next http.Handler) http.Handler {
	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	        start := time.Now()
	        rw := &responseWriter{ResponseWriter: w, statusCode: 200}
	        next.ServeHTTP(rw, r)
	        metrics.RecordAPIRequest(r.Method, r.URL.Path,
	            strconv.Itoa(rw.statusCode), time.Since(start))
	    })
	}

Example PromQL queries:

	# Event rate by command
	rate(events_total[5m])

	# Event handler p95 latency
	histogram_quantile(0.95, rate(event_handling_duration_seconds_bucket[5m]))

	# Broadcast fan-out rate
	rate(websocket_broadcasts_total[5m])

	# Probe cache hit rate
	sum(rate(cache_hits_total{cache_type="probe"}[5m])) /
	  (sum(rate(cache_hits_total{cache_type="probe"}[5m])) + sum(rate(cache_misses_total{cache_type="probe"}[5m])))

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

To prevent high cardinality issues:

  - Command and event labels come from the fixed protocol vocabulary
  - Endpoint labels are route patterns, not raw paths
  - Room codes, fingerprints, and filenames are never used as labels

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/events: Event routing metrics recording
  - internal/media: Probe and thumbnail metrics recording
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
*/
package metrics
