// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package vpn

import (
	"errors"
	"net"
	"testing"
)

func fixtureInterface(name string, flags net.Flags, cidrs ...string) netInterface {
	iface := netInterface{name: name, flags: flags}
	for _, cidr := range cidrs {
		ip, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		ipnet.IP = ip
		iface.addrs = append(iface.addrs, ipnet)
	}
	return iface
}

func TestCheckDetectsTunnelInterfaces(t *testing.T) {
	tests := []struct {
		name    string
		ifaces  []netInterface
		tunnel  bool
		matched []string
	}{
		{
			name: "wireguard interface",
			ifaces: []netInterface{
				fixtureInterface("wg0", net.FlagUp, "10.8.0.2/24"),
				fixtureInterface("eth0", net.FlagUp, "192.168.1.10/24"),
			},
			tunnel:  true,
			matched: []string{"wg0"},
		},
		{
			name: "tailscale interface",
			ifaces: []netInterface{
				fixtureInterface("tailscale0", net.FlagUp, "100.101.102.103/32"),
			},
			tunnel:  true,
			matched: []string{"tailscale0"},
		},
		{
			name: "tun and tap both reported",
			ifaces: []netInterface{
				fixtureInterface("tun0", net.FlagUp, "10.0.0.2/24"),
				fixtureInterface("tap1", net.FlagUp, "10.0.1.2/24"),
			},
			tunnel:  true,
			matched: []string{"tap1", "tun0"},
		},
		{
			name: "plain ethernet only",
			ifaces: []netInterface{
				fixtureInterface("eth0", net.FlagUp, "192.168.1.10/24"),
			},
			tunnel: false,
		},
		{
			name: "down tunnel is ignored",
			ifaces: []netInterface{
				fixtureInterface("wg0", 0, "10.8.0.2/24"),
			},
			tunnel: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := NewEnvironment("http", 3000).WithInterfaceSource(func() ([]netInterface, error) {
				return tt.ifaces, nil
			})

			resp := env.Check()
			if resp.TunnelDetected != tt.tunnel {
				t.Errorf("TunnelDetected = %v, want %v", resp.TunnelDetected, tt.tunnel)
			}
			if len(resp.Interfaces) != len(tt.matched) {
				t.Fatalf("Interfaces = %v, want %v", resp.Interfaces, tt.matched)
			}
			for i, want := range tt.matched {
				if resp.Interfaces[i] != want {
					t.Errorf("Interfaces[%d] = %q, want %q", i, resp.Interfaces[i], want)
				}
			}
		})
	}
}

func TestCheckBuildsLanURLs(t *testing.T) {
	env := NewEnvironment("http", 3000).WithInterfaceSource(func() ([]netInterface, error) {
		return []netInterface{
			fixtureInterface("lo", net.FlagUp|net.FlagLoopback, "127.0.0.1/8"),
			fixtureInterface("eth0", net.FlagUp, "192.168.1.10/24", "fe80::1/64"),
			fixtureInterface("eth1", net.FlagUp, "10.0.0.5/8"),
		}, nil
	})

	resp := env.Check()

	want := []string{"http://10.0.0.5:3000", "http://192.168.1.10:3000"}
	if len(resp.LanURLs) != len(want) {
		t.Fatalf("LanURLs = %v, want %v", resp.LanURLs, want)
	}
	for i := range want {
		if resp.LanURLs[i] != want[i] {
			t.Errorf("LanURLs[%d] = %q, want %q", i, resp.LanURLs[i], want[i])
		}
	}
}

func TestCheckTunnelAddressesExcludedFromLanURLs(t *testing.T) {
	env := NewEnvironment("https", 8443).WithInterfaceSource(func() ([]netInterface, error) {
		return []netInterface{
			fixtureInterface("wg0", net.FlagUp, "10.8.0.2/24"),
			fixtureInterface("eth0", net.FlagUp, "192.168.1.10/24"),
		}, nil
	})

	resp := env.Check()

	if !resp.TunnelDetected {
		t.Error("expected tunnel detection")
	}
	if len(resp.LanURLs) != 1 || resp.LanURLs[0] != "https://192.168.1.10:8443" {
		t.Errorf("LanURLs = %v, want only the ethernet address", resp.LanURLs)
	}
}

func TestCheckScanFailureDegrades(t *testing.T) {
	env := NewEnvironment("http", 3000).WithInterfaceSource(func() ([]netInterface, error) {
		return nil, errors.New("interfaces unavailable")
	})

	resp := env.Check()

	if resp.TunnelDetected {
		t.Error("TunnelDetected should be false on scan failure")
	}
	if resp.LanURLs == nil {
		t.Error("LanURLs should be an empty slice, not nil, so JSON encodes []")
	}
	if len(resp.LanURLs) != 0 {
		t.Errorf("LanURLs = %v, want empty", resp.LanURLs)
	}
}

func TestCheckDownInterfacesSkipped(t *testing.T) {
	env := NewEnvironment("http", 3000).WithInterfaceSource(func() ([]netInterface, error) {
		return []netInterface{
			fixtureInterface("eth0", 0, "192.168.1.10/24"),
		}, nil
	})

	resp := env.Check()
	if len(resp.LanURLs) != 0 {
		t.Errorf("down interface should contribute no URLs, got %v", resp.LanURLs)
	}
}

func TestIsTunnelName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"tun0", true},
		{"tap3", true},
		{"wg0", true},
		{"zt7nnc5dxi", true},
		{"tailscale0", true},
		{"TUN0", true},
		{"eth0", false},
		{"enp3s0", false},
		{"lo", false},
		{"wlan0", false},
		{"docker0", false},
	}
	for _, tt := range tests {
		if got := isTunnelName(tt.name); got != tt.want {
			t.Errorf("isTunnelName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSystemInterfacesDoesNotError(t *testing.T) {
	// A host always has at least loopback; this exercises the real path.
	ifaces, err := systemInterfaces()
	if err != nil {
		t.Fatalf("systemInterfaces: %v", err)
	}
	if len(ifaces) == 0 {
		t.Error("expected at least one interface")
	}
}

func TestNewEnvironmentDefaultsScheme(t *testing.T) {
	env := NewEnvironment("", 3000)
	if env.scheme != "http" {
		t.Errorf("scheme = %q, want http", env.scheme)
	}
}
