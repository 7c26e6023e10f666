// Package status provides a thread-safe status tracker for the sensor node.
// It is written by the main loop and read by the portal HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	SampleMs     int64
	PushMs       int64
	ReportMs     int64
	CollectorURL string
	Broker       string
}

// Snapshot is a point-in-time view of node state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	BoxCount       uint32
	Proximity      logic.Level
	Angle          logic.AngleSample
	AngleConnected bool
	Mode           logic.Mode
	Connectivity   logic.Connectivity
	Address        string
	PushConnected  bool
	StartTime      time.Time
	Now            time.Time
	Config         Config
}

// Uptime returns the duration since the node started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable node state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Proximity:    logic.High,
			Mode:         logic.ModeConsole,
			Connectivity: logic.Offline,
			StartTime:    startTime,
			Config:       cfg,
		},
		now: time.Now,
	}
}

// UpdateSensors sets the counter and angle readings.
func (t *Tracker) UpdateSensors(count uint32, proximity logic.Level, angle logic.AngleSample, angleConnected bool) {
	t.mu.Lock()
	t.snap.BoxCount = count
	t.snap.Proximity = proximity
	t.snap.Angle = angle
	t.snap.AngleConnected = angleConnected
	t.mu.Unlock()
}

// UpdateLink sets the communication mode and connectivity.
func (t *Tracker) UpdateLink(mode logic.Mode, conn logic.Connectivity, address string, pushConnected bool) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.Connectivity = conn
	t.snap.Address = address
	t.snap.PushConnected = pushConnected
	t.mu.Unlock()
}

// SetClock replaces the clock used to stamp snapshots.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the node state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
