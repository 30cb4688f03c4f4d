// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package events

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/syncplayer/internal/metrics"
)

// Token bucket parameters for inbound socket events. A host may burst
// eventBurst messages; the bucket refills at eventBurst tokens per
// rateWindow. A host that empties its bucket is gated for cooldownPeriod
// before its tokens are honored again.
const (
	eventBurst     = 100
	rateWindow     = 10 * time.Second
	cooldownPeriod = 5 * time.Second
)

// Table pruning thresholds. Short-lived LAN parties leave few entries
// behind; these only matter for long-running public servers.
const (
	pruneAbove     = 512
	idleEvictAfter = 10 * time.Minute
)

type hostBucket struct {
	limiter       *rate.Limiter
	cooldownUntil time.Time
	lastSeen      time.Time
}

// RateLimiter gates inbound events per remote host. Loopback hosts bypass
// the limiter entirely so a local player or the admin page on the server
// machine never throttles.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*hostBucket

	// now is swapped out by tests.
	now func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*hostBucket),
		now:     time.Now,
	}
}

// Reserve spends one token for host. When the host is limited it reports
// how long the sender should wait before retrying.
func (l *RateLimiter) Reserve(host string) (retryAfter time.Duration, limited bool) {
	if isLoopback(host) {
		return 0, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[host]
	if !ok {
		if len(l.buckets) >= pruneAbove {
			l.pruneLocked(now)
		}
		b = &hostBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(eventBurst)/rateWindow.Seconds()), eventBurst),
		}
		l.buckets[host] = b
	}
	b.lastSeen = now

	if now.Before(b.cooldownUntil) {
		return b.cooldownUntil.Sub(now), true
	}

	if !b.limiter.AllowN(now, 1) {
		b.cooldownUntil = now.Add(cooldownPeriod)
		metrics.RateLimitCooldowns.Inc()
		return cooldownPeriod, true
	}
	return 0, false
}

// pruneLocked drops buckets idle beyond idleEvictAfter. Caller holds l.mu.
func (l *RateLimiter) pruneLocked(now time.Time) {
	for host, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleEvictAfter {
			delete(l.buckets, host)
		}
	}
}

// isLoopback reports whether host names the local machine.
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
