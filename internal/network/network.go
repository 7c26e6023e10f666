// Package network drives the wireless connectivity of the node: joining a
// network with user-supplied credentials and starting the provisioning
// portal. Joining is polled from the main loop and never blocks it.
package network

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/logic"
)

// Errors returned by the Manager.
var (
	ErrEmptyCredentials = errors.New("SSID and password cannot be empty")
	ErrJoinInProgress   = errors.New("a join attempt is already in progress")
	ErrPortalActive     = errors.New("provisioning portal is active, restart to join a network")
)

// Station associates the node with an existing wireless network.
// Begin must not block; the outcome is observed through Connected.
type Station interface {
	Begin(ssid, password string) error
	Connected() bool
	Address() string
	Disconnect() error
}

// AccessPoint hosts the node's own wireless network.
type AccessPoint interface {
	StartAccessPoint(ssid, password string, addr net.IP) error
	StopAccessPoint() error
}

// PortalServices are the name-resolution and HTTP responders of the portal.
type PortalServices interface {
	Start(addr net.IP) error
	Stop() error
}

// Credentials are validated, trimmed network credentials.
type Credentials struct {
	SSID     string
	Password string
}

// ParseCredentials trims both fields and rejects empty values.
func ParseCredentials(ssid, password string) (Credentials, error) {
	c := Credentials{
		SSID:     strings.TrimSpace(ssid),
		Password: strings.TrimSpace(password),
	}
	if c.SSID == "" || c.Password == "" {
		return Credentials{}, ErrEmptyCredentials
	}
	return c, nil
}

// APConfig describes the provisioning access point.
type APConfig struct {
	SSID     string
	Password string
	Address  net.IP
}

// Config contains the join timing and access point settings.
type Config struct {
	JoinTimeout  time.Duration
	PollInterval time.Duration
	AP           APConfig
}

// DefaultConfig returns the join bound (15s), poll interval (500ms) and the
// fixed 192.168.4.1 access point.
func DefaultConfig() Config {
	return Config{
		JoinTimeout:  15 * time.Second,
		PollInterval: 500 * time.Millisecond,
		AP: APConfig{
			SSID:     "conveyor-sensor",
			Password: "12345678",
			Address:  net.IPv4(192, 168, 4, 1),
		},
	}
}

// EventKind identifies a connectivity event reported by Tick.
type EventKind int

const (
	EventNone EventKind = iota
	EventJoinProgress
	EventJoined
	EventJoinTimedOut
	EventLinkLost
)

// Event is a connectivity change or progress report.
type Event struct {
	Kind    EventKind
	SSID    string
	Address string
}

// PortalInfo describes an active portal.
type PortalInfo struct {
	SSID    string
	Address net.IP
	// AlreadyActive is true when the portal was running before the call.
	AlreadyActive bool
}

// Manager holds the connectivity state machine.
type Manager struct {
	cfg     Config
	station Station
	ap      AccessPoint
	portal  PortalServices

	state       logic.Connectivity
	ssid        string
	address     string
	joinStarted time.Time
	lastPoll    time.Time
}

// NewManager creates an Offline manager.
func NewManager(cfg Config, station Station, ap AccessPoint, portal PortalServices) *Manager {
	return &Manager{
		cfg:     cfg,
		station: station,
		ap:      ap,
		portal:  portal,
		state:   logic.Offline,
	}
}

// State returns the current connectivity state.
func (m *Manager) State() logic.Connectivity {
	return m.state
}

// Address returns the station address while Joined, or the portal address
// while the portal is active.
func (m *Manager) Address() string {
	switch m.state {
	case logic.Joined:
		return m.address
	case logic.ProvisioningPortal:
		return m.cfg.AP.Address.String()
	}
	return ""
}

// SSID returns the network being joined or joined.
func (m *Manager) SSID() string {
	return m.ssid
}

// Join begins associating with a network. The attempt is driven by Tick.
func (m *Manager) Join(creds Credentials, now time.Time) error {
	switch m.state {
	case logic.Joining:
		return ErrJoinInProgress
	case logic.ProvisioningPortal:
		return ErrPortalActive
	}

	if err := m.station.Begin(creds.SSID, creds.Password); err != nil {
		m.state = logic.Offline
		m.address = ""
		return fmt.Errorf("begin join: %w", err)
	}

	m.state = logic.Joining
	m.ssid = creds.SSID
	m.address = ""
	m.joinStarted = now
	m.lastPoll = now
	return nil
}

// Tick polls an ongoing join attempt or an established link.
func (m *Manager) Tick(now time.Time) Event {
	switch m.state {
	case logic.Joining:
		if now.Sub(m.lastPoll) < m.cfg.PollInterval {
			return Event{}
		}
		m.lastPoll = now

		if m.station.Connected() {
			m.state = logic.Joined
			m.address = m.station.Address()
			return Event{Kind: EventJoined, SSID: m.ssid, Address: m.address}
		}
		if now.Sub(m.joinStarted) >= m.cfg.JoinTimeout {
			m.state = logic.Offline
			if err := m.station.Disconnect(); err != nil {
				log.Printf("abandon join %s: %v", m.ssid, err)
			}
			return Event{Kind: EventJoinTimedOut, SSID: m.ssid}
		}
		return Event{Kind: EventJoinProgress, SSID: m.ssid}

	case logic.Joined:
		if now.Sub(m.lastPoll) < m.cfg.PollInterval {
			return Event{}
		}
		m.lastPoll = now

		if !m.station.Connected() {
			m.state = logic.Offline
			m.address = ""
			return Event{Kind: EventLinkLost, SSID: m.ssid}
		}
	}
	return Event{}
}

// StartPortal brings up the access point and the portal responders.
// It is idempotent once the portal is active and rejected while a join is
// in progress. On failure nothing started by this call is left running and
// a joined station is kept only if its link survived.
func (m *Manager) StartPortal() (PortalInfo, error) {
	info := PortalInfo{SSID: m.cfg.AP.SSID, Address: m.cfg.AP.Address}

	switch m.state {
	case logic.ProvisioningPortal:
		info.AlreadyActive = true
		return info, nil
	case logic.Joining:
		return PortalInfo{}, ErrJoinInProgress
	}

	if err := m.ap.StartAccessPoint(m.cfg.AP.SSID, m.cfg.AP.Password, m.cfg.AP.Address); err != nil {
		m.rollbackPortal(false)
		return PortalInfo{}, fmt.Errorf("start access point: %w", err)
	}
	if err := m.portal.Start(m.cfg.AP.Address); err != nil {
		m.rollbackPortal(true)
		return PortalInfo{}, fmt.Errorf("start portal services: %w", err)
	}

	// The radio now hosts the access point; any station link is gone.
	m.state = logic.ProvisioningPortal
	m.address = ""
	return info, nil
}

// rollbackPortal undoes a partial portal start.
func (m *Manager) rollbackPortal(servicesStarted bool) {
	if servicesStarted {
		if err := m.portal.Stop(); err != nil {
			log.Printf("stop portal services: %v", err)
		}
	}
	if err := m.ap.StopAccessPoint(); err != nil {
		log.Printf("stop access point: %v", err)
	}
	if m.state == logic.Joined && !m.station.Connected() {
		log.Printf("link to %s lost while starting portal", m.ssid)
		m.state = logic.Offline
		m.address = ""
	}
}

// Close stops the portal services if they were started.
func (m *Manager) Close() error {
	if m.state == logic.ProvisioningPortal {
		return m.portal.Stop()
	}
	return nil
}
