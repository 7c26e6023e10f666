package console

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sweeney/conveyor-sensor/internal/logic"
	"github.com/sweeney/conveyor-sensor/internal/network"
)

const (
	// DefaultLineTimeout ends a dialog field after this much idle input.
	DefaultLineTimeout = time.Second

	// DefaultQuietPeriod is how long the console waits after a command
	// before showing the menu again.
	DefaultQuietPeriod = 300 * time.Millisecond
)

// Handler carries out console commands against the node.
type Handler interface {
	// AngleReading returns the cached sample and whether the latest poll
	// found the sensor.
	AngleReading() (logic.AngleSample, bool)

	// ProximityReading returns the edge state and the box count.
	ProximityReading() (logic.Level, uint32)

	Join(creds network.Credentials, now time.Time) error
	StartPortal() (network.PortalInfo, error)

	// SwitchToPush requests the one-way switch to push mode. It takes
	// effect after the current Tick returns.
	SwitchToPush()
}

type dialogState int

const (
	stateMenu dialogState = iota
	stateAwaitSSID
	stateAwaitPassword
	stateDone
)

// Console is the command state machine. Tick must be called from the main
// loop; it never blocks.
type Console struct {
	link     Link
	handler  Handler
	commands []*Command
	byFlag   map[byte]*Command

	LineTimeout time.Duration
	QuietPeriod time.Duration

	state     dialogState
	line      []byte
	lastInput time.Time
	afterCR   bool
	ssid      string

	menuDue bool
	menuAt  time.Time
}

// New creates a console over link running the given command table.
func New(link Link, handler Handler, commands []*Command) *Console {
	byFlag := make(map[byte]*Command, len(commands))
	for _, cmd := range commands {
		byFlag[cmd.Flag] = cmd
	}
	return &Console{
		link:        link,
		handler:     handler,
		commands:    commands,
		byFlag:      byFlag,
		LineTimeout: DefaultLineTimeout,
		QuietPeriod: DefaultQuietPeriod,
	}
}

// Greet writes the welcome banner and the menu.
func (c *Console) Greet() {
	c.Println("Welcome! Connected to the conveyor sensor console.")
	c.showMenu()
}

// Done reports whether the console has handed over to push mode.
func (c *Console) Done() bool {
	return c.state == stateDone
}

// InDialog reports whether a credential dialog is open.
func (c *Console) InDialog() bool {
	return c.state == stateAwaitSSID || c.state == stateAwaitPassword
}

// Tick processes pending input and due redisplays.
func (c *Console) Tick(now time.Time) {
	switch c.state {
	case stateMenu:
		c.tickMenu(now)
	case stateAwaitSSID, stateAwaitPassword:
		c.tickDialog(now)
	}
}

func (c *Console) tickMenu(now time.Time) {
	b, ok := c.link.TryReadByte()
	if !ok {
		if c.menuDue && !now.Before(c.menuAt) {
			c.menuDue = false
			c.showMenu()
		}
		return
	}

	if b == '\n' || b == '\r' {
		return
	}

	if cmd, found := c.byFlag[b]; found {
		cmd.Run(c, now)
	} else {
		c.Println(c.invalidMessage())
	}

	if c.state == stateMenu {
		c.scheduleMenu(now)
	}
}

func (c *Console) scheduleMenu(now time.Time) {
	c.menuDue = true
	c.menuAt = now.Add(c.QuietPeriod)
}

// tickDialog accumulates one field. A field ends on a line terminator or
// when input has been idle for LineTimeout after the first byte.
func (c *Console) tickDialog(now time.Time) {
	for {
		b, ok := c.link.TryReadByte()
		if !ok {
			break
		}
		c.lastInput = now

		if b == '\n' && c.afterCR {
			c.afterCR = false
			continue
		}
		c.afterCR = b == '\r'

		if b == '\r' || b == '\n' {
			c.finishField(now)
			if c.state != stateAwaitSSID && c.state != stateAwaitPassword {
				return
			}
			continue
		}
		c.line = append(c.line, b)
	}

	if len(c.line) > 0 && now.Sub(c.lastInput) >= c.LineTimeout {
		c.finishField(now)
	}
}

func (c *Console) finishField(now time.Time) {
	field := strings.TrimSpace(string(c.line))
	c.line = c.line[:0]

	switch c.state {
	case stateAwaitSSID:
		c.ssid = field
		c.Println("SSID received: " + field)
		c.Println("Enter the network password:")
		c.state = stateAwaitPassword
	case stateAwaitPassword:
		c.Println("Password received: " + strings.Repeat("*", len(field)))
		ssid := c.ssid
		c.ssid = ""
		c.state = stateMenu
		c.submitJoin(ssid, field, now)
		c.scheduleMenu(now)
	}
}

func (c *Console) submitJoin(ssid, password string, now time.Time) {
	creds, err := network.ParseCredentials(ssid, password)
	if err != nil {
		c.Println("Error: SSID and password cannot be empty.")
		return
	}
	if err := c.handler.Join(creds, now); err != nil {
		c.Println("Error: " + err.Error() + ".")
		return
	}
	c.Println("Connecting to WiFi...")
}

// beginDialog flushes pending input and prompts for the SSID.
func (c *Console) beginDialog(now time.Time) {
	for {
		if _, ok := c.link.TryReadByte(); !ok {
			break
		}
	}
	c.line = c.line[:0]
	c.afterCR = false
	c.lastInput = now
	c.menuDue = false
	c.state = stateAwaitSSID
	c.Println("Enter the WiFi SSID:")
}

// finish stops the console. Nothing is written after this.
func (c *Console) finish() {
	c.state = stateDone
	c.menuDue = false
}

// Report writes a connectivity event for the user.
func (c *Console) Report(ev network.Event) {
	if c.state == stateDone {
		return
	}
	switch ev.Kind {
	case network.EventJoinProgress:
		c.Print(".")
	case network.EventJoined:
		c.Println("")
		c.Println("Connected to WiFi!")
		c.Println("IP: " + ev.Address)
	case network.EventJoinTimedOut:
		c.Println("")
		c.Println("Could not connect. Check the SSID and password.")
	case network.EventLinkLost:
		c.Println("WiFi connection to " + ev.SSID + " lost.")
	}
}

// Close tears down the link.
func (c *Console) Close() error {
	c.state = stateDone
	return c.link.Close()
}

// Print writes s without a line ending.
func (c *Console) Print(s string) {
	if c.state == stateDone {
		return
	}
	if err := c.link.WriteString(s); err != nil {
		log.Printf("console write error: %v", err)
	}
}

// Println writes s followed by CRLF.
func (c *Console) Println(s string) {
	c.Print(s + "\r\n")
}

// Printf formats a line.
func (c *Console) Printf(format string, args ...any) {
	c.Println(fmt.Sprintf(format, args...))
}

func (c *Console) showMenu() {
	var b strings.Builder
	b.WriteString("\r\n--- MENU ---\r\n")
	for _, cmd := range c.commands {
		fmt.Fprintf(&b, "%c. %s\r\n", cmd.Flag, cmd.Description)
	}
	fmt.Fprintf(&b, "Choose an option (%s):", c.flagRange("-"))
	c.Println(b.String())
}

func (c *Console) invalidMessage() string {
	return fmt.Sprintf("Invalid option. Choose %s.", c.flagRange(" to "))
}

func (c *Console) flagRange(sep string) string {
	if len(c.commands) == 0 {
		return "none"
	}
	first := c.commands[0].Flag
	last := c.commands[len(c.commands)-1].Flag
	if first == last {
		return string(first)
	}
	return string(first) + sep + string(last)
}
