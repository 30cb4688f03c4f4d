// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package vpn reports host network environment hints for the admin UI.
//
// Sync-Player is typically shared over a LAN or a VPN overlay (WireGuard,
// Tailscale, ZeroTier). The admin page shows which URLs other devices can
// use to reach the server, and whether a tunnel interface is up so the
// admin knows remote viewers can join.
//
// # Overview
//
// The Environment detector scans the interface table once per request:
//
//   - Tunnel detection: interface names matching tun*/tap*/wg*/zt*/tailscale*
//   - LAN URLs: scheme://ip:port for every up, non-loopback IPv4 address
//
// Tunnel interface addresses are excluded from the LAN URL list since a
// 10.x wireguard peer address is rarely what the admin wants to paste
// into a chat message.
//
// # Usage
//
//	env := vpn.NewEnvironment("http", cfg.Port)
//	resp := env.Check()
//	// resp.TunnelDetected, resp.Interfaces, resp.LanURLs
//
// Scan failures degrade to an empty response; the endpoint never errors.
package vpn
