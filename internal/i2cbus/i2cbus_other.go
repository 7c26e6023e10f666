//go:build !linux

// Package i2cbus exposes a Linux i2c-dev character device as a
// tinygo.org/x/drivers I2C bus.
package i2cbus

import "errors"

// Bus is not available on non-Linux platforms.
type Bus struct{}

// Open returns an error on non-Linux platforms.
func Open(path string) (*Bus, error) {
	return nil, errors.New("i2cbus: not supported on this platform (requires Linux)")
}

// Tx is not implemented on non-Linux platforms.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return errors.New("i2cbus: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *Bus) Close() error {
	return nil
}
