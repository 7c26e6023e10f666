package network

import (
	"context"
	"fmt"
	"log"
	"net"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// hotspotConnection is the NetworkManager connection profile of the portal.
const hotspotConnection = "conveyor-portal"

// NMStation joins networks through NetworkManager's nmcli.
type NMStation struct {
	iface   string
	timeout time.Duration
	run     Runner
	addr    func(iface string) string

	mu        sync.Mutex
	cancel    context.CancelFunc
	connected atomic.Bool
}

// NewNMStation creates a station on the given wireless interface.
// The association attempt is abandoned after timeout.
func NewNMStation(iface string, timeout time.Duration, run Runner) *NMStation {
	return &NMStation{
		iface:   iface,
		timeout: timeout,
		run:     run,
		addr:    interfaceIPv4,
	}
}

// Begin starts an association in the background.
func (s *NMStation) Begin(ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.connected.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.cancel = cancel

	wait := fmt.Sprintf("%d", int(s.timeout.Seconds()))
	go func() {
		defer cancel()
		out, err := s.run(ctx, "nmcli", "--wait", wait, "device", "wifi", "connect", ssid,
			"password", password, "ifname", s.iface)
		if err != nil {
			log.Printf("nmcli connect %q failed: %v: %s", ssid, err, strings.TrimSpace(string(out)))
			return
		}
		if ctx.Err() == nil {
			s.connected.Store(true)
		}
	}()
	return nil
}

// Connected reports whether the last association succeeded and the
// interface still holds an address.
func (s *NMStation) Connected() bool {
	return s.connected.Load() && s.addr(s.iface) != ""
}

// Address returns the IPv4 address of the interface.
func (s *NMStation) Address() string {
	return s.addr(s.iface)
}

// Disconnect abandons any association attempt and drops the link.
func (s *NMStation) Disconnect() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.connected.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if out, err := s.run(ctx, "nmcli", "device", "disconnect", s.iface); err != nil {
		return fmt.Errorf("nmcli disconnect: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NMAccessPoint hosts the portal network through nmcli.
type NMAccessPoint struct {
	iface string
	run   Runner
}

// NewNMAccessPoint creates an access point on the given wireless interface.
func NewNMAccessPoint(iface string, run Runner) *NMAccessPoint {
	return &NMAccessPoint{iface: iface, run: run}
}

// StartAccessPoint creates the hotspot with a static /24 address and
// brings it up.
func (a *NMAccessPoint) StartAccessPoint(ssid, password string, addr net.IP) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	steps := [][]string{
		{"device", "wifi", "hotspot", "ifname", a.iface, "con-name", hotspotConnection,
			"ssid", ssid, "password", password},
		{"connection", "modify", hotspotConnection,
			"ipv4.method", "shared", "ipv4.addresses", addr.String() + "/24"},
		{"connection", "up", hotspotConnection},
	}
	for _, args := range steps {
		if out, err := a.run(ctx, "nmcli", args...); err != nil {
			return fmt.Errorf("nmcli %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// StopAccessPoint takes the hotspot connection down.
func (a *NMAccessPoint) StopAccessPoint() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if out, err := a.run(ctx, "nmcli", "connection", "down", hotspotConnection); err != nil {
		return fmt.Errorf("nmcli connection down: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// interfaceIPv4 returns the first IPv4 address of iface, or "".
func interfaceIPv4(iface string) string {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return ""
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok {
			if ip4 := ipn.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return ""
}
