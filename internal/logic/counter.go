package logic

// ProximityCounter counts boxes passing the beam sensor.
//
// It is a pure edge detector: a box is counted on every High -> Low
// transition between two consecutive samples. There is no separate debounce
// filter, so the sampling interval is the debounce window and must exceed
// the shortest time a box spends in front of the sensor.
type ProximityCounter struct {
	count uint32
	last  Level
}

// NewProximityCounter creates a counter with a zero count and a clear beam.
func NewProximityCounter() *ProximityCounter {
	return &ProximityCounter{last: High}
}

// Sample feeds the current sensor level. It reports whether a box was counted.
func (p *ProximityCounter) Sample(level Level) bool {
	counted := p.last == High && level == Low
	if counted {
		p.count++
	}
	p.last = level
	return counted
}

// Count returns the number of boxes seen since startup.
func (p *ProximityCounter) Count() uint32 {
	return p.count
}

// State returns the last observed level.
func (p *ProximityCounter) State() Level {
	return p.last
}
