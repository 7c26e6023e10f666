// Package controller owns the node state and the cooperative main loop:
// console or push handling, fixed-cadence sampling, connectivity polling
// and HTTP reporting, in that order, once per Step.
package controller

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/console"
	"github.com/sweeney/conveyor-sensor/internal/gpio"
	"github.com/sweeney/conveyor-sensor/internal/logic"
	"github.com/sweeney/conveyor-sensor/internal/mqtt"
	"github.com/sweeney/conveyor-sensor/internal/network"
	"github.com/sweeney/conveyor-sensor/internal/status"
	"github.com/sweeney/conveyor-sensor/internal/telemetry"
)

// Config contains the loop cadences.
type Config struct {
	Sample         time.Duration
	PushInterval   time.Duration
	ReportInterval time.Duration
}

// DefaultConfig returns the 500ms sampling, 5s push and 10s report cadences.
func DefaultConfig() Config {
	return Config{
		Sample:         500 * time.Millisecond,
		PushInterval:   5 * time.Second,
		ReportInterval: 10 * time.Second,
	}
}

// PushOpener opens the push channel. It is called once, at the switch to
// push mode.
type PushOpener func() (telemetry.PushChannel, error)

// Deps are the collaborators of the controller.
type Deps struct {
	Proximity   gpio.Reader
	AngleSensor logic.AngleSensor
	Console     console.Link
	// Commands defaults to console.DefaultCommands.
	Commands []*console.Command
	Network  *network.Manager
	Reporter telemetry.ReportPublisher
	OpenPush PushOpener
	// Tracker is optional.
	Tracker *status.Tracker
}

// Controller is the single owner of the node state. It is not safe for
// concurrent use; only the main loop calls it.
type Controller struct {
	cfg       Config
	proximity gpio.Reader
	counter   *logic.ProximityCounter
	sampler   *logic.AngleSampler
	network   *network.Manager
	reporter  telemetry.ReportPublisher
	openPush  PushOpener
	tracker   *status.Tracker

	mode          mode
	switchPending bool

	sampleCadence *logic.Cadence
	reportCadence *logic.Cadence
}

// New creates a controller in console mode.
func New(cfg Config, deps Deps) *Controller {
	c := &Controller{
		cfg:           cfg,
		proximity:     deps.Proximity,
		counter:       logic.NewProximityCounter(),
		sampler:       logic.NewAngleSampler(deps.AngleSensor),
		network:       deps.Network,
		reporter:      deps.Reporter,
		openPush:      deps.OpenPush,
		tracker:       deps.Tracker,
		sampleCadence: logic.NewCadence(cfg.Sample),
		reportCadence: logic.NewCadence(cfg.ReportInterval),
	}

	commands := deps.Commands
	if commands == nil {
		commands = console.DefaultCommands
	}
	c.mode = consoleMode{console: console.New(deps.Console, c, commands)}
	return c
}

// Start greets the console client.
func (c *Controller) Start() {
	if m, ok := c.mode.(consoleMode); ok {
		m.console.Greet()
	}
}

// Step runs one loop iteration at now.
func (c *Controller) Step(now time.Time) {
	switch m := c.mode.(type) {
	case consoleMode:
		m.console.Tick(now)
		if c.switchPending {
			c.enterPush()
		}
	case pushMode:
		if m.cadence.Due(now) {
			m.publisher.Publish(c.freshReport())
		}
	}

	if c.sampleCadence.Due(now) {
		c.sample()
	}

	if ev := c.network.Tick(now); ev.Kind != network.EventNone {
		c.handleEvent(ev)
	}

	if c.network.State() == logic.Joined && c.reportCadence.Due(now) {
		c.report()
	}

	c.updateTracker()
}

func (c *Controller) sample() {
	level, err := c.proximity.Read()
	if err != nil {
		log.Printf("gpio read error: %v", err)
	} else if c.counter.Sample(level) {
		log.Printf("box detected: total=%d", c.counter.Count())
	}
	c.sampler.Poll()
}

// freshReport polls the angle sensor now. The angle is 0 when the sensor
// is unavailable.
func (c *Controller) freshReport() logic.Report {
	r := logic.Report{BoxCount: c.counter.Count()}
	if sample, ok := c.sampler.Poll(); ok {
		r.Angle = sample.Angle
	}
	return r
}

func (c *Controller) report() {
	err := c.reporter.Publish(c.freshReport())
	switch {
	case errors.Is(err, telemetry.ErrBusy):
		log.Printf("http report dropped: %v", err)
	case err != nil:
		log.Printf("http report error: %v", err)
	}
}

func (c *Controller) handleEvent(ev network.Event) {
	switch ev.Kind {
	case network.EventJoined:
		log.Printf("joined %s: address=%s", ev.SSID, ev.Address)
	case network.EventJoinTimedOut:
		log.Printf("join %s timed out", ev.SSID)
	case network.EventLinkLost:
		log.Printf("link to %s lost", ev.SSID)
	}
	if m, ok := c.mode.(consoleMode); ok {
		m.console.Report(ev)
	}
}

// enterPush performs the one-way switch. The console link is torn down
// first; a push channel that fails to open is logged and push ticks are
// skipped from then on.
func (c *Controller) enterPush() {
	c.switchPending = false
	m, ok := c.mode.(consoleMode)
	if !ok {
		return
	}
	if err := m.console.Close(); err != nil {
		log.Printf("console close error: %v", err)
	}

	var ch telemetry.PushChannel
	if c.openPush != nil {
		var err error
		ch, err = c.openPush()
		if err != nil {
			log.Printf("push channel open error: %v", err)
			ch = nil
		}
	}

	next := pushMode{
		publisher: telemetry.NewPushPublisher(ch),
		cadence:   logic.NewCadence(c.cfg.PushInterval),
	}
	if cs, ok := ch.(mqtt.ConnectionStatus); ok {
		next.status = cs
	}
	c.mode = next
	log.Printf("push mode active: interval=%v", c.cfg.PushInterval)
}

func (c *Controller) updateTracker() {
	if c.tracker == nil {
		return
	}
	c.tracker.UpdateSensors(c.counter.Count(), c.counter.State(), c.sampler.Last(), c.sampler.Connected())

	pushConnected := false
	if m, ok := c.mode.(pushMode); ok {
		pushConnected = m.connected()
	}
	c.tracker.UpdateLink(c.mode.display(), c.network.State(), c.network.Address(), pushConnected)
}

// Mode returns the current communication mode.
func (c *Controller) Mode() logic.Mode {
	return c.mode.display()
}

// BoxCount returns the number of boxes counted so far.
func (c *Controller) BoxCount() uint32 {
	return c.counter.Count()
}

// Connectivity returns the network state.
func (c *Controller) Connectivity() logic.Connectivity {
	return c.network.State()
}

// AngleReading implements console.Handler.
func (c *Controller) AngleReading() (logic.AngleSample, bool) {
	return c.sampler.Last(), c.sampler.Connected()
}

// ProximityReading implements console.Handler.
func (c *Controller) ProximityReading() (logic.Level, uint32) {
	return c.counter.State(), c.counter.Count()
}

// Join implements console.Handler.
func (c *Controller) Join(creds network.Credentials, now time.Time) error {
	if err := c.network.Join(creds, now); err != nil {
		log.Printf("join %s rejected: %v", creds.SSID, err)
		return err
	}
	log.Printf("joining %s", creds.SSID)
	return nil
}

// StartPortal implements console.Handler.
func (c *Controller) StartPortal() (network.PortalInfo, error) {
	info, err := c.network.StartPortal()
	if err != nil {
		log.Printf("portal start error: %v", err)
		return info, err
	}
	if !info.AlreadyActive {
		log.Printf("portal active: ssid=%s address=%s", info.SSID, info.Address)
	}
	return info, nil
}

// SwitchToPush implements console.Handler.
func (c *Controller) SwitchToPush() {
	c.switchPending = true
}

// Close releases the console or push channel and the portal services.
func (c *Controller) Close() error {
	var errs []error
	switch m := c.mode.(type) {
	case consoleMode:
		errs = append(errs, m.console.Close())
	case pushMode:
		errs = append(errs, m.publisher.Close())
	}
	errs = append(errs, c.network.Close())
	return errors.Join(errs...)
}
