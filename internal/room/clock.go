// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package room

import (
	"context"
	"time"

	"github.com/tomtom215/syncplayer/internal/logging"
)

// TickInterval is how often every room's virtual clock folds elapsed wall
// time into its position. Ticks never broadcast; clients learn positions
// from mutation-driven sync events.
const TickInterval = 5 * time.Second

// ClockService advances all rooms' playback clocks from one loop. It
// implements suture.Service so the supervisor restarts it if it ever
// fails.
type ClockService struct {
	registry *Registry
	interval time.Duration
}

// NewClockService creates the clock driver for a registry.
func NewClockService(registry *Registry) *ClockService {
	return &ClockService{registry: registry, interval: TickInterval}
}

// Serve ticks until the context is canceled.
func (c *ClockService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	logging.Debug().Dur("interval", c.interval).Msg("room clock started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "room-clock").Msg("room clock stopped")
			return ctx.Err()
		case now := <-ticker.C:
			for _, r := range c.registry.Rooms() {
				r.AdvanceClock(now)
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (c *ClockService) String() string {
	return "room-clock"
}
