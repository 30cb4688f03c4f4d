// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package vpn

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/tomtom215/syncplayer/internal/logging"
	"github.com/tomtom215/syncplayer/internal/models"
)

// tunnelPrefixes are interface name prefixes that indicate a VPN or
// overlay network tunnel. Matching is case-insensitive on the prefix.
var tunnelPrefixes = []string{"tun", "tap", "wg", "zt", "tailscale"}

// netInterface is the subset of net.Interface the detector needs.
// Carrying resolved addresses lets tests inject fixtures without
// touching the host network stack.
type netInterface struct {
	name  string
	flags net.Flags
	addrs []net.Addr
}

// interfaceSource enumerates the host's network interfaces.
type interfaceSource func() ([]netInterface, error)

// systemInterfaces reads the real interface table via net.Interfaces.
// Address resolution failures on individual interfaces are skipped so
// one misbehaving device doesn't hide the rest.
func systemInterfaces() ([]netInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing network interfaces: %w", err)
	}

	out := make([]netInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			logging.Debug().Err(err).Str("interface", iface.Name).Msg("Skipping interface with unreadable addresses")
			addrs = nil
		}
		out = append(out, netInterface{name: iface.Name, flags: iface.Flags, addrs: addrs})
	}
	return out, nil
}

// Environment inspects the host network to produce sharing hints for
// the admin UI: whether a VPN tunnel interface is up, and which LAN
// URLs other devices can reach the server on.
type Environment struct {
	scheme string
	port   int
	source interfaceSource
}

// NewEnvironment creates a detector that builds URLs with the given
// scheme ("http" or "https") and listen port.
func NewEnvironment(scheme string, port int) *Environment {
	if scheme == "" {
		scheme = "http"
	}
	return &Environment{
		scheme: scheme,
		port:   port,
		source: systemInterfaces,
	}
}

// WithInterfaceSource overrides interface enumeration. Used by tests.
func (e *Environment) WithInterfaceSource(source interfaceSource) *Environment {
	e.source = source
	return e
}

// Check scans the interface table and reports tunnel hints plus
// reachable LAN URLs. Enumeration failure degrades to an empty
// response rather than an error so the endpoint stays available.
func (e *Environment) Check() *models.VPNCheckResponse {
	resp := &models.VPNCheckResponse{
		LanURLs: []string{},
	}

	ifaces, err := e.source()
	if err != nil {
		logging.Warn().Err(err).Msg("Network interface scan failed")
		return resp
	}

	for _, iface := range ifaces {
		if iface.flags&net.FlagUp == 0 {
			continue
		}
		if isTunnelName(iface.name) {
			resp.TunnelDetected = true
			resp.Interfaces = append(resp.Interfaces, iface.name)
			// Tunnel addresses are not useful as LAN share targets.
			continue
		}
		if iface.flags&net.FlagLoopback != 0 {
			continue
		}
		for _, addr := range iface.addrs {
			ip := addrIP(addr)
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			// IPv6 literals need brackets; LAN sharing targets are
			// overwhelmingly IPv4 so those come first.
			v4 := ip.To4()
			if v4 == nil {
				continue
			}
			resp.LanURLs = append(resp.LanURLs, fmt.Sprintf("%s://%s:%d", e.scheme, v4.String(), e.port))
		}
	}

	sort.Strings(resp.LanURLs)
	sort.Strings(resp.Interfaces)
	return resp
}

// isTunnelName reports whether an interface name looks like a VPN or
// overlay tunnel (tun0, tap1, wg0, zt*, tailscale0).
func isTunnelName(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range tunnelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// addrIP extracts the IP from the net.Addr shapes Addrs returns.
func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPNet:
		return a.IP
	case *net.IPAddr:
		return a.IP
	default:
		return nil
	}
}
