package network

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/logic"
)

var (
	_ Station        = (*FakeStation)(nil)
	_ Station        = (*NMStation)(nil)
	_ AccessPoint    = (*FakeAccessPoint)(nil)
	_ AccessPoint    = (*NMAccessPoint)(nil)
	_ PortalServices = (*FakePortal)(nil)
)

func newTestManager(station *FakeStation) (*Manager, *FakeAccessPoint, *FakePortal) {
	ap := &FakeAccessPoint{}
	portal := &FakePortal{}
	return NewManager(DefaultConfig(), station, ap, portal), ap, portal
}

func mustCreds(t *testing.T) Credentials {
	t.Helper()
	c, err := ParseCredentials("plant-wifi", "secret")
	if err != nil {
		t.Fatalf("ParseCredentials: %v", err)
	}
	return c
}

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name         string
		ssid, pass   string
		wantErr      bool
		wantSSID     string
		wantPassword string
	}{
		{"plain", "net", "pw", false, "net", "pw"},
		{"trimmed", "  net \r\n", "\tpw  ", false, "net", "pw"},
		{"empty ssid", "", "pw", true, "", ""},
		{"blank ssid", "   ", "pw", true, "", ""},
		{"empty password", "net", "", true, "", ""},
		{"blank password", "net", " \n", true, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCredentials(tt.ssid, tt.pass)
			if tt.wantErr {
				if !errors.Is(err, ErrEmptyCredentials) {
					t.Errorf("expected ErrEmptyCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.SSID != tt.wantSSID || c.Password != tt.wantPassword {
				t.Errorf("got %+v", c)
			}
		})
	}
}

func TestJoinSucceeds(t *testing.T) {
	station := &FakeStation{ConnectAfter: 2, Addr: "10.0.0.42"}
	m, _, _ := newTestManager(station)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := m.Join(mustCreds(t), now); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if m.State() != logic.Joining {
		t.Fatalf("expected JOINING, got %s", m.State())
	}
	if station.SSID != "plant-wifi" || station.Password != "secret" {
		t.Errorf("station got %q/%q", station.SSID, station.Password)
	}

	// Before the poll interval nothing happens.
	if ev := m.Tick(now.Add(100 * time.Millisecond)); ev.Kind != EventNone {
		t.Errorf("expected no event, got %v", ev.Kind)
	}

	var ev Event
	for i := 1; i <= 3; i++ {
		ev = m.Tick(now.Add(time.Duration(i) * 500 * time.Millisecond))
	}
	if ev.Kind != EventJoined {
		t.Fatalf("expected EventJoined, got %v", ev.Kind)
	}
	if ev.Address != "10.0.0.42" {
		t.Errorf("address: got %q", ev.Address)
	}
	if m.State() != logic.Joined {
		t.Errorf("expected JOINED, got %s", m.State())
	}
	if m.Address() != "10.0.0.42" {
		t.Errorf("Address(): got %q", m.Address())
	}
}

func TestJoinTimesOut(t *testing.T) {
	station := &FakeStation{ConnectAfter: -1}
	m, _, _ := newTestManager(station)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := m.Join(mustCreds(t), now); err != nil {
		t.Fatalf("Join: %v", err)
	}

	var last Event
	var offlineAt time.Duration
	for elapsed := 10 * time.Millisecond; elapsed <= 20*time.Second; elapsed += 10 * time.Millisecond {
		ev := m.Tick(now.Add(elapsed))
		if ev.Kind != EventNone {
			last = ev
		}
		if m.State() == logic.Offline {
			offlineAt = elapsed
			break
		}
	}

	if last.Kind != EventJoinTimedOut {
		t.Fatalf("expected EventJoinTimedOut, got %v", last.Kind)
	}
	if offlineAt < 15*time.Second || offlineAt > 15*time.Second+500*time.Millisecond {
		t.Errorf("went offline at %v, want 15s within one poll interval", offlineAt)
	}
	if station.Disconnects != 1 {
		t.Errorf("expected attempt to be abandoned, got %d disconnects", station.Disconnects)
	}
}

func TestJoinTimeoutDisconnectErrorStillOffline(t *testing.T) {
	station := &FakeStation{ConnectAfter: -1, DisconnectError: errors.New("device busy")}
	m, _, _ := newTestManager(station)
	now := time.Now()
	m.Join(mustCreds(t), now)

	if ev := m.Tick(now.Add(15 * time.Second)); ev.Kind != EventJoinTimedOut {
		t.Fatalf("expected JoinTimedOut, got %v", ev.Kind)
	}
	if m.State() != logic.Offline {
		t.Errorf("expected OFFLINE, got %s", m.State())
	}
	if station.Disconnects != 1 {
		t.Errorf("disconnects: got %d", station.Disconnects)
	}
}

func TestJoinProgressEvents(t *testing.T) {
	station := &FakeStation{ConnectAfter: -1}
	m, _, _ := newTestManager(station)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Join(mustCreds(t), now)

	progress := 0
	for i := 1; i <= 4; i++ {
		if m.Tick(now.Add(time.Duration(i)*500*time.Millisecond)).Kind == EventJoinProgress {
			progress++
		}
	}
	if progress != 4 {
		t.Errorf("expected 4 progress events, got %d", progress)
	}
}

func TestJoinWhileJoiningRejected(t *testing.T) {
	station := &FakeStation{ConnectAfter: -1}
	m, _, _ := newTestManager(station)
	now := time.Now()
	m.Join(mustCreds(t), now)

	if err := m.Join(mustCreds(t), now); !errors.Is(err, ErrJoinInProgress) {
		t.Errorf("expected ErrJoinInProgress, got %v", err)
	}
	if station.Begins != 1 {
		t.Errorf("expected 1 begin, got %d", station.Begins)
	}
}

func TestJoinBeginErrorStaysOffline(t *testing.T) {
	station := &FakeStation{BeginError: errors.New("radio busy")}
	m, _, _ := newTestManager(station)

	if err := m.Join(mustCreds(t), time.Now()); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != logic.Offline {
		t.Errorf("expected OFFLINE, got %s", m.State())
	}
}

func TestRejoinFromJoined(t *testing.T) {
	station := &FakeStation{ConnectAfter: 0, Addr: "10.0.0.2"}
	m, _, _ := newTestManager(station)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Join(mustCreds(t), now)
	m.Tick(now.Add(500 * time.Millisecond))
	if m.State() != logic.Joined {
		t.Fatalf("expected JOINED, got %s", m.State())
	}

	other, _ := ParseCredentials("other", "pw")
	if err := m.Join(other, now.Add(time.Second)); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if m.State() != logic.Joining {
		t.Errorf("expected JOINING, got %s", m.State())
	}
	if m.SSID() != "other" {
		t.Errorf("SSID: got %q", m.SSID())
	}
}

func TestLinkLost(t *testing.T) {
	station := &FakeStation{ConnectAfter: 0, Addr: "10.0.0.2"}
	m, _, _ := newTestManager(station)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Join(mustCreds(t), now)
	m.Tick(now.Add(500 * time.Millisecond))

	station.Drop()
	ev := m.Tick(now.Add(time.Second))
	if ev.Kind != EventLinkLost {
		t.Fatalf("expected EventLinkLost, got %v", ev.Kind)
	}
	if m.State() != logic.Offline {
		t.Errorf("expected OFFLINE, got %s", m.State())
	}
	if m.Address() != "" {
		t.Errorf("expected no address, got %q", m.Address())
	}
}

func TestStartPortal(t *testing.T) {
	m, ap, portal := newTestManager(&FakeStation{})

	info, err := m.StartPortal()
	if err != nil {
		t.Fatalf("StartPortal: %v", err)
	}
	if info.AlreadyActive {
		t.Error("expected AlreadyActive=false on first start")
	}
	if !info.Address.Equal(net.IPv4(192, 168, 4, 1)) {
		t.Errorf("address: got %v", info.Address)
	}
	if m.State() != logic.ProvisioningPortal {
		t.Errorf("expected PORTAL, got %s", m.State())
	}
	if ap.Starts != 1 || portal.Starts != 1 {
		t.Errorf("starts: ap=%d portal=%d", ap.Starts, portal.Starts)
	}
	if ap.SSID != "conveyor-sensor" {
		t.Errorf("AP SSID: got %q", ap.SSID)
	}
	if m.Address() != "192.168.4.1" {
		t.Errorf("Address(): got %q", m.Address())
	}

	info, err = m.StartPortal()
	if err != nil {
		t.Fatalf("second StartPortal: %v", err)
	}
	if !info.AlreadyActive {
		t.Error("expected AlreadyActive=true on second start")
	}
	if ap.Starts != 1 || portal.Starts != 1 {
		t.Errorf("portal restarted: ap=%d portal=%d", ap.Starts, portal.Starts)
	}
}

func TestStartPortalFromJoined(t *testing.T) {
	station := &FakeStation{ConnectAfter: 0, Addr: "10.0.0.2"}
	m, _, _ := newTestManager(station)
	now := time.Now()
	m.Join(mustCreds(t), now)
	m.Tick(now.Add(time.Second))

	if _, err := m.StartPortal(); err != nil {
		t.Fatalf("StartPortal: %v", err)
	}
	if m.State() != logic.ProvisioningPortal {
		t.Errorf("expected PORTAL, got %s", m.State())
	}
}

func TestStartPortalWhileJoiningRejected(t *testing.T) {
	station := &FakeStation{ConnectAfter: -1}
	m, ap, portal := newTestManager(station)
	now := time.Now()
	m.Join(mustCreds(t), now)

	if _, err := m.StartPortal(); !errors.Is(err, ErrJoinInProgress) {
		t.Fatalf("expected ErrJoinInProgress, got %v", err)
	}
	if m.State() != logic.Joining {
		t.Errorf("expected JOINING, got %s", m.State())
	}
	if ap.Starts != 0 || portal.Starts != 0 {
		t.Errorf("nothing should start: ap=%d portal=%d", ap.Starts, portal.Starts)
	}

	// The join attempt still runs to its bound.
	if ev := m.Tick(now.Add(15 * time.Second)); ev.Kind != EventJoinTimedOut {
		t.Errorf("expected JoinTimedOut, got %v", ev.Kind)
	}
	if _, err := m.StartPortal(); err != nil {
		t.Fatalf("StartPortal after timeout: %v", err)
	}
}

func TestStartPortalAccessPointFailure(t *testing.T) {
	m, ap, portal := newTestManager(&FakeStation{})
	ap.StartError = errors.New("no radio")

	if _, err := m.StartPortal(); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != logic.Offline {
		t.Errorf("expected OFFLINE, got %s", m.State())
	}
	if portal.Starts != 0 {
		t.Error("portal services should not start without an access point")
	}
	if ap.Stops != 1 {
		t.Errorf("expected partial hotspot to be taken down, got %d stops", ap.Stops)
	}
}

func TestStartPortalServicesFailure(t *testing.T) {
	m, ap, portal := newTestManager(&FakeStation{})
	portal.StartError = errors.New("port 53 in use")
	ap.StopError = errors.New("no such connection")

	if _, err := m.StartPortal(); err == nil {
		t.Fatal("expected error")
	}
	if m.State() != logic.Offline {
		t.Errorf("expected OFFLINE, got %s", m.State())
	}
	if portal.Stops != 1 {
		t.Errorf("expected partial start to be stopped, got %d stops", portal.Stops)
	}
	if ap.Stops != 1 {
		t.Errorf("expected access point to be stopped, got %d stops", ap.Stops)
	}
}

func TestStartPortalFailureFromJoined(t *testing.T) {
	tests := []struct {
		name      string
		linkKept  bool
		wantState logic.Connectivity
		wantAddr  string
	}{
		{"link survives", true, logic.Joined, "10.0.0.2"},
		{"link replaced by hotspot", false, logic.Offline, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			station := &FakeStation{ConnectAfter: 0, Addr: "10.0.0.2"}
			m, ap, portal := newTestManager(station)
			now := time.Now()
			m.Join(mustCreds(t), now)
			m.Tick(now.Add(time.Second))
			if m.State() != logic.Joined {
				t.Fatalf("setup: expected JOINED, got %s", m.State())
			}

			portal.StartError = errors.New("bind :53")
			if !tt.linkKept {
				station.Drop()
			}
			if _, err := m.StartPortal(); err == nil {
				t.Fatal("expected error")
			}
			if ap.Starts != 1 || ap.Stops != 1 {
				t.Errorf("access point: starts=%d stops=%d", ap.Starts, ap.Stops)
			}
			if m.State() != tt.wantState {
				t.Errorf("state: got %s, want %s", m.State(), tt.wantState)
			}
			if m.Address() != tt.wantAddr {
				t.Errorf("address: got %q, want %q", m.Address(), tt.wantAddr)
			}
		})
	}
}

func TestPortalIsTerminal(t *testing.T) {
	m, _, _ := newTestManager(&FakeStation{ConnectAfter: 0})
	m.StartPortal()

	if err := m.Join(mustCreds(t), time.Now()); !errors.Is(err, ErrPortalActive) {
		t.Errorf("expected ErrPortalActive, got %v", err)
	}
	if ev := m.Tick(time.Now().Add(time.Minute)); ev.Kind != EventNone {
		t.Errorf("expected no event, got %v", ev.Kind)
	}
	if m.State() != logic.ProvisioningPortal {
		t.Errorf("expected PORTAL, got %s", m.State())
	}
}

type recordedCmd struct {
	name string
	args []string
}

type fakeRunner struct {
	mu    sync.Mutex
	cmds  []recordedCmd
	err   error
	calls chan struct{}
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.cmds = append(f.cmds, recordedCmd{name: name, args: args})
	f.mu.Unlock()
	if f.calls != nil {
		f.calls <- struct{}{}
	}
	if f.err != nil {
		return []byte("Error: failed"), f.err
	}
	return nil, nil
}

func TestNMAccessPointCommands(t *testing.T) {
	r := &fakeRunner{}
	ap := NewNMAccessPoint("wlan0", r.run)

	if err := ap.StartAccessPoint("conveyor-sensor", "12345678", net.IPv4(192, 168, 4, 1)); err != nil {
		t.Fatalf("StartAccessPoint: %v", err)
	}
	if len(r.cmds) != 3 {
		t.Fatalf("expected 3 nmcli calls, got %d", len(r.cmds))
	}
	for _, c := range r.cmds {
		if c.name != "nmcli" {
			t.Errorf("unexpected command %q", c.name)
		}
	}
	modify := strings.Join(r.cmds[1].args, " ")
	if !strings.Contains(modify, "ipv4.addresses 192.168.4.1/24") {
		t.Errorf("modify args: %q", modify)
	}
}

func TestNMAccessPointFailure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 10")}
	ap := NewNMAccessPoint("wlan0", r.run)

	if err := ap.StartAccessPoint("x", "12345678", net.IPv4(192, 168, 4, 1)); err == nil {
		t.Fatal("expected error")
	}
	if len(r.cmds) != 1 {
		t.Errorf("expected to stop after first failure, got %d calls", len(r.cmds))
	}
}

func TestNMAccessPointStop(t *testing.T) {
	r := &fakeRunner{}
	ap := NewNMAccessPoint("wlan0", r.run)

	if err := ap.StopAccessPoint(); err != nil {
		t.Fatalf("StopAccessPoint: %v", err)
	}
	if len(r.cmds) != 1 {
		t.Fatalf("expected 1 nmcli call, got %d", len(r.cmds))
	}
	if got := strings.Join(r.cmds[0].args, " "); got != "connection down conveyor-portal" {
		t.Errorf("stop args: %q", got)
	}

	r.err = errors.New("exit status 10")
	if err := ap.StopAccessPoint(); err == nil {
		t.Error("expected error")
	}
}

func TestNMStationConnects(t *testing.T) {
	r := &fakeRunner{calls: make(chan struct{}, 1)}
	s := NewNMStation("wlan0", 15*time.Second, r.run)
	s.addr = func(string) string { return "10.0.0.9" }

	if err := s.Begin("plant-wifi", "secret"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	<-r.calls

	deadline := time.Now().Add(time.Second)
	for !s.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("station never reported connected")
		}
		time.Sleep(time.Millisecond)
	}
	if s.Address() != "10.0.0.9" {
		t.Errorf("Address: got %q", s.Address())
	}

	r.mu.Lock()
	args := strings.Join(r.cmds[0].args, " ")
	r.mu.Unlock()
	if !strings.Contains(args, "wifi connect plant-wifi password secret ifname wlan0") {
		t.Errorf("connect args: %q", args)
	}
}

func TestNMStationFailureNeverConnects(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 4"), calls: make(chan struct{}, 1)}
	s := NewNMStation("wlan0", 15*time.Second, r.run)
	s.addr = func(string) string { return "10.0.0.9" }

	s.Begin("plant-wifi", "wrong")
	<-r.calls
	time.Sleep(10 * time.Millisecond)

	if s.Connected() {
		t.Error("expected not connected after failed association")
	}
}
