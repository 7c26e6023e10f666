package logic

import "time"

// Cadence decides when fixed-interval work is due, by comparing elapsed
// time against the last firing. The first call to Due always fires.
type Cadence struct {
	interval time.Duration
	last     time.Time
	fired    bool
}

// NewCadence creates a cadence with the given interval.
func NewCadence(interval time.Duration) *Cadence {
	return &Cadence{interval: interval}
}

// Due reports whether the work is due at now, and re-arms if so.
func (c *Cadence) Due(now time.Time) bool {
	if c.fired && now.Sub(c.last) < c.interval {
		return false
	}
	c.fired = true
	c.last = now
	return true
}

// Interval returns the configured interval.
func (c *Cadence) Interval() time.Duration {
	return c.interval
}
