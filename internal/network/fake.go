package network

import "net"

// FakeStation is a test double for Station.
type FakeStation struct {
	// ConnectAfter is the number of Connected polls that return false
	// before the station reports connected. Negative never connects.
	ConnectAfter int
	// Addr is returned by Address once connected.
	Addr string
	// BeginError, if set, is returned by Begin.
	BeginError error
	// DisconnectError, if set, is returned by Disconnect.
	DisconnectError error

	SSID         string
	Password     string
	Begins       int
	Polls        int
	Disconnects  int
	connected    bool
	pendingPolls int
}

// Begin records the credentials and starts the scripted countdown.
func (f *FakeStation) Begin(ssid, password string) error {
	if f.BeginError != nil {
		return f.BeginError
	}
	f.Begins++
	f.SSID = ssid
	f.Password = password
	f.connected = false
	f.pendingPolls = f.ConnectAfter
	return nil
}

// Connected follows the ConnectAfter script.
func (f *FakeStation) Connected() bool {
	f.Polls++
	if f.connected {
		return true
	}
	if f.ConnectAfter < 0 || f.Begins == 0 {
		return false
	}
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return false
	}
	f.connected = true
	return true
}

// Address returns Addr while connected.
func (f *FakeStation) Address() string {
	if !f.connected {
		return ""
	}
	return f.Addr
}

// Disconnect drops the link.
func (f *FakeStation) Disconnect() error {
	f.Disconnects++
	f.connected = false
	return f.DisconnectError
}

// Drop simulates losing an established link.
func (f *FakeStation) Drop() {
	f.connected = false
	f.ConnectAfter = -1
}

// FakeAccessPoint is a test double for AccessPoint.
type FakeAccessPoint struct {
	StartError error
	StopError  error
	Starts     int
	Stops      int
	SSID       string
	Password   string
	Addr       net.IP
}

// StartAccessPoint records the call.
func (f *FakeAccessPoint) StartAccessPoint(ssid, password string, addr net.IP) error {
	if f.StartError != nil {
		return f.StartError
	}
	f.Starts++
	f.SSID = ssid
	f.Password = password
	f.Addr = addr
	return nil
}

// StopAccessPoint records the call.
func (f *FakeAccessPoint) StopAccessPoint() error {
	f.Stops++
	return f.StopError
}

// FakePortal is a test double for PortalServices.
type FakePortal struct {
	StartError error
	Starts     int
	Stops      int
	Addr       net.IP
}

// Start records the call.
func (f *FakePortal) Start(addr net.IP) error {
	if f.StartError != nil {
		return f.StartError
	}
	f.Starts++
	f.Addr = addr
	return nil
}

// Stop records the call.
func (f *FakePortal) Stop() error {
	f.Stops++
	return nil
}
