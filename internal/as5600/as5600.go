// Package as5600 reads the AS5600 12-bit magnetic rotary position sensor.
//
// Only the three operations the node needs are exposed: a presence check
// and the two angle registers. The bus must already be configured.
//
// NOTE: I2C.Tx must perform the register write followed by the read; the
// sensor keeps its address pointer so a stop in between is tolerated.
package as5600

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2C address (fixed on the AS5600).
const Address = 0x36

// Registers.
const (
	regRawAngle = 0x0C
	regAngle    = 0x0E
	regStatus   = 0x0B

	statusMagnetDetected = 0x20
)

// ErrProtocol is returned when a register read returns an impossible value.
var ErrProtocol = errors.New("as5600: protocol error")

// Device wraps an I2C connection to an AS5600.
type Device struct {
	bus     drivers.I2C
	Address uint16

	buf [2]byte
}

// New creates a Device on the given bus. It does not touch the sensor.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address}
}

// IsConnected reports whether the sensor acknowledges a status read.
func (d *Device) IsConnected() bool {
	_, err := d.status()
	return err == nil
}

// MagnetDetected reports whether the sensor sees a magnet.
func (d *Device) MagnetDetected() (bool, error) {
	st, err := d.status()
	if err != nil {
		return false, err
	}
	return st&statusMagnetDetected != 0, nil
}

// ReadAngle returns the scaled angle register (0-4095).
func (d *Device) ReadAngle() (int, error) {
	return d.read12(regAngle)
}

// ReadRaw returns the unscaled raw angle register (0-4095).
func (d *Device) ReadRaw() (int, error) {
	return d.read12(regRawAngle)
}

func (d *Device) status() (byte, error) {
	data := d.buf[:1]
	if err := d.bus.Tx(d.Address, []byte{regStatus}, data); err != nil {
		return 0, err
	}
	return data[0], nil
}

func (d *Device) read12(reg byte) (int, error) {
	data := d.buf[:2]
	if err := d.bus.Tx(d.Address, []byte{reg}, data); err != nil {
		return 0, err
	}
	if data[0]&0xF0 != 0 {
		return 0, ErrProtocol
	}
	return int(data[0])<<8 | int(data[1]), nil
}
