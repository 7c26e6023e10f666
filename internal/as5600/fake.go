package as5600

// FakeSensor is a test double for the rotary sensor.
type FakeSensor struct {
	Connected bool
	Angle     int
	Raw       int
	Magnet    bool
	// ReadError, if set, is returned by ReadAngle and ReadRaw.
	ReadError error
}

// IsConnected returns the scripted connection state.
func (f *FakeSensor) IsConnected() bool { return f.Connected }

// ReadAngle returns the scripted angle.
func (f *FakeSensor) ReadAngle() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Angle, nil
}

// ReadRaw returns the scripted raw angle.
func (f *FakeSensor) ReadRaw() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Raw, nil
}

// MagnetDetected returns the scripted magnet state.
func (f *FakeSensor) MagnetDetected() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Magnet, nil
}
