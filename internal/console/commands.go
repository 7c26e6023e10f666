package console

import (
	"fmt"
	"time"
)

// Command is one entry of the console menu, selected by a single byte.
type Command struct {
	Flag        byte
	Description string
	Run         func(c *Console, now time.Time)
}

var (
	ReportAngleCommand = &Command{
		Flag:        '1',
		Description: "Read angle sensor",
		Run: func(c *Console, now time.Time) {
			sample, ok := c.handler.AngleReading()
			if !ok {
				c.Println("Error: angle sensor not detected")
				if sample.Valid {
					c.Printf("Last reading: %d (%.1f deg)", sample.Angle, sample.Degrees)
				}
				return
			}
			c.Printf("Angle: %d | Raw: %d | Degrees: %.1f", sample.Angle, sample.Raw, sample.Degrees)
		},
	}
	ReportProximityCommand = &Command{
		Flag:        '2',
		Description: "Read proximity sensor",
		Run: func(c *Console, now time.Time) {
			level, count := c.handler.ProximityReading()
			c.Println("Sensor state: " + level.String())
			c.Println(fmt.Sprintf("Total boxes: %d", count))
		},
	}
	JoinNetworkCommand = &Command{
		Flag:        '3',
		Description: "Connect to WiFi",
		Run: func(c *Console, now time.Time) {
			c.beginDialog(now)
		},
	}
	StartPortalCommand = &Command{
		Flag:        '4',
		Description: "Start captive portal",
		Run: func(c *Console, now time.Time) {
			c.Println("Starting captive portal...")
			info, err := c.handler.StartPortal()
			if err != nil {
				c.Println("Error creating the access point: " + err.Error())
				return
			}
			if info.AlreadyActive {
				c.Println("Captive portal already active: " + info.SSID)
				c.Println("Visit: http://" + info.Address.String())
				return
			}
			c.Println("Captive portal created: " + info.SSID)
			c.Println("IP: " + info.Address.String())
			c.Println("Web server started")
			c.Println("Connect to the WiFi network '" + info.SSID + "'")
			c.Println("The portal will open automatically")
			c.Println("Or visit: http://" + info.Address.String())
		},
	}
	SwitchToPushCommand = &Command{
		Flag:        '5',
		Description: "Switch to push mode",
		Run: func(c *Console, now time.Time) {
			c.Println("Switching to push mode. You will be disconnected.")
			c.finish()
			c.handler.SwitchToPush()
		},
	}
)

// DefaultCommands is the full command set. Smaller deployments pass a
// subset to New.
var DefaultCommands = []*Command{
	ReportAngleCommand,
	ReportProximityCommand,
	JoinNetworkCommand,
	StartPortalCommand,
	SwitchToPushCommand,
}
