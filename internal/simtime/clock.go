package simtime

import "math"

// Clock converts real elapsed time into simulation time.
type Clock struct {
	now Time
}

// NewClock creates a clock positioned at the given tick.
func NewClock(startTick uint64) *Clock {
	return &Clock{now: FromTicks(startTick)}
}

// Now returns a snapshot of the current simulation time.
func (c *Clock) Now() Time {
	return c.now
}

// Ticks is shorthand for Now().Ticks().
func (c *Clock) Ticks() uint64 {
	return c.now.Ticks()
}

// Advance scales realDelta by the time scale and accumulates it.
// ok is false when the step produces no simulation time: the scale is Paused
// or realDelta is negative or not finite. Callers must treat !ok as
// "nothing happens this step".
func (c *Clock) Advance(realDelta float64, scale TimeScale) (delta float64, ok bool) {
	if scale == Paused {
		return 0, false
	}
	if realDelta < 0 || math.IsNaN(realDelta) || math.IsInf(realDelta, 0) {
		return 0, false
	}
	delta = realDelta * scale.Multiplier()
	c.now += Time(delta)
	return delta, true
}
