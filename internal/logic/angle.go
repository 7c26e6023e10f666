package logic

// AngleResolution is the number of steps per revolution of a 12-bit sensor.
const AngleResolution = 4096

// AngleSensor is the narrow view of the rotary sensor used by the sampler.
type AngleSensor interface {
	IsConnected() bool
	ReadAngle() (int, error)
	ReadRaw() (int, error)
}

// AngleSample is the last successful reading of the rotary sensor.
type AngleSample struct {
	Angle   int
	Raw     int
	Degrees float64
	// Valid is false until the first successful poll.
	Valid bool
}

// Degrees converts a sensor reading to degrees.
func Degrees(angle int) float64 {
	return float64(angle) * 360 / AngleResolution
}

// AngleSampler polls the rotary sensor and caches the latest reading.
// A disconnected sensor never overwrites the cache.
type AngleSampler struct {
	sensor    AngleSensor
	last      AngleSample
	connected bool
}

// NewAngleSampler creates a sampler for the given sensor.
func NewAngleSampler(sensor AngleSensor) *AngleSampler {
	return &AngleSampler{sensor: sensor}
}

// Poll reads the sensor. It returns false, leaving the cached sample as it
// was, when the sensor is disconnected or a read fails.
func (s *AngleSampler) Poll() (AngleSample, bool) {
	if !s.sensor.IsConnected() {
		s.connected = false
		return s.last, false
	}
	angle, err := s.sensor.ReadAngle()
	if err != nil {
		s.connected = false
		return s.last, false
	}
	raw, err := s.sensor.ReadRaw()
	if err != nil {
		s.connected = false
		return s.last, false
	}

	s.connected = true
	s.last = AngleSample{
		Angle:   angle,
		Raw:     raw,
		Degrees: Degrees(angle),
		Valid:   true,
	}
	return s.last, true
}

// Last returns the cached sample.
func (s *AngleSampler) Last() AngleSample {
	return s.last
}

// Connected reports whether the latest poll reached the sensor.
func (s *AngleSampler) Connected() bool {
	return s.connected
}
