// Package logic contains the pure state of the sensor node: edge counting,
// angle caching, scheduling cadences and the value types shared by the rest
// of the daemon.
// This package has NO external dependencies (no GPIO, I2C, network, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

// Level is the logic level of the proximity sensor output.
type Level bool

const (
	// Low means an object is in front of the beam.
	Low Level = false
	// High means the beam is clear.
	High Level = true
)

// String returns the human-readable proximity state.
func (l Level) String() string {
	if l == High {
		return "CLEAR"
	}
	return "OBSTRUCTED"
}

// Mode is the communication mode of the node, as displayed.
type Mode string

const (
	ModeConsole Mode = "CONSOLE"
	ModePush    Mode = "PUSH"
)

// Connectivity represents the wireless network state.
type Connectivity string

const (
	Offline            Connectivity = "OFFLINE"
	Joining            Connectivity = "JOINING"
	Joined             Connectivity = "JOINED"
	ProvisioningPortal Connectivity = "PORTAL"
)

// Report is a telemetry value built fresh for each publish.
type Report struct {
	Angle    int
	BoxCount uint32
}
