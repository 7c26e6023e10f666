// Package gpio provides the proximity sensor input with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/conveyor-sensor/internal/logic"

// Reader reads the proximity sensor line.
type Reader interface {
	// Read returns the current level of the sensor output.
	// The E18-D80NK output is NPN open collector: raw 1 (pulled up) = clear
	// beam = logic.High, raw 0 = object present = logic.Low.
	Read() (logic.Level, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults for a Raspberry Pi (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 26
)
