// Package simtime provides simulation time: a monotonic fractional-second counter,
// the pausable time-scale multiplier, and the calendar view used for display.
package simtime

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidTimeOrdering is returned when an elapsed-time query is made against a
// snapshot that lies in the future of the receiver.
var ErrInvalidTimeOrdering = errors.New("invalid time ordering")

// Calendar layout. One tick (one simulated second) reads as one minute on
// the calendar.
const (
	MinutesPerHour = 60
	HoursPerDay    = 24
	TicksPerHour   = MinutesPerHour
	TicksPerDay    = MinutesPerHour * HoursPerDay // 1440
	DaysPerYear    = 360

	// DefaultStartTick puts a fresh world at noon of day 0.
	DefaultStartTick = 720
)

// Time is accumulated simulation time in fractional seconds.
type Time float64

// FromTicks returns the time at the start of the given tick.
func FromTicks(ticks uint64) Time {
	return Time(ticks)
}

// Ticks floors the accumulated time to whole ticks.
func (t Time) Ticks() uint64 {
	if t <= 0 || math.IsNaN(float64(t)) {
		return 0
	}
	return uint64(math.Floor(float64(t)))
}

// Seconds returns the raw accumulated value.
func (t Time) Seconds() float64 {
	return float64(t)
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool {
	return t < u
}

// TimeSince returns the number of ticks between earlier and t.
// earlier must not be later than t.
func (t Time) TimeSince(earlier Time) (uint64, error) {
	if earlier > t {
		return 0, fmt.Errorf("%w: %.3f is after %.3f", ErrInvalidTimeOrdering, float64(earlier), float64(t))
	}
	return t.Ticks() - earlier.Ticks(), nil
}

// IsFirstTick reports whether the clock is still inside tick zero.
func (t Time) IsFirstTick() bool {
	return t.Ticks() == 0
}

// Year returns the calendar year (zero-based).
func (t Time) Year() uint64 {
	return t.Ticks() / TicksPerDay / DaysPerYear
}

// Day returns the day within the year (zero-based).
func (t Time) Day() uint64 {
	return (t.Ticks() / TicksPerDay) % DaysPerYear
}

// MinuteOfDay returns the tick offset within the current day.
func (t Time) MinuteOfDay() uint64 {
	return t.Ticks() % TicksPerDay
}

// HourMinute returns the wall-clock reading of the current day.
func (t Time) HourMinute() (hour, minute int) {
	m := t.MinuteOfDay()
	return int(m / MinutesPerHour), int(m % MinutesPerHour)
}

// String renders the calendar reading, e.g. "Year 0, Day 0, 12:00".
func (t Time) String() string {
	hour, minute := t.HourMinute()
	return fmt.Sprintf("Year %d, Day %d, %02d:%02d", t.Year(), t.Day(), hour, minute)
}

// TimeScale is the user-selected speed of the simulation.
type TimeScale uint8

const (
	Paused TimeScale = iota
	Normal
	Fast
	Fastest
)

var scaleNames = [...]string{"paused", "normal", "fast", "fastest"}

// Multiplier converts real seconds into simulated seconds.
func (s TimeScale) Multiplier() float64 {
	switch s {
	case Normal:
		return 1
	case Fast:
		return 2
	case Fastest:
		return 4
	default:
		return 0
	}
}

func (s TimeScale) String() string {
	if int(s) < len(scaleNames) {
		return scaleNames[s]
	}
	return fmt.Sprintf("TimeScale(%d)", uint8(s))
}

// ParseTimeScale accepts the lower-case names produced by String.
func ParseTimeScale(name string) (TimeScale, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range scaleNames {
		if n == name {
			return TimeScale(i), nil
		}
	}
	return Paused, fmt.Errorf("unknown time scale %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s TimeScale) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TimeScale) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeScale(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
