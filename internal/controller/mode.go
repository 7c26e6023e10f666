package controller

import (
	"github.com/sweeney/conveyor-sensor/internal/console"
	"github.com/sweeney/conveyor-sensor/internal/logic"
	"github.com/sweeney/conveyor-sensor/internal/mqtt"
	"github.com/sweeney/conveyor-sensor/internal/telemetry"
)

// mode is the communication mode. Only the two types below implement it,
// and a pushMode holds no console, so nothing can switch back.
type mode interface {
	display() logic.Mode
}

type consoleMode struct {
	console *console.Console
}

func (consoleMode) display() logic.Mode { return logic.ModeConsole }

type pushMode struct {
	publisher *telemetry.PushPublisher
	cadence   *logic.Cadence
	// status is nil when the channel does not report connectivity.
	status mqtt.ConnectionStatus
}

func (pushMode) display() logic.Mode { return logic.ModePush }

func (m pushMode) connected() bool {
	return m.status != nil && m.status.IsConnected()
}
