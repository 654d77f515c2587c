// Package motives implements the eight decaying needs that drive a fella.
// All values range from 0.0 (completely unmet) to 1.0 (fully satisfied).
package motives

import (
	"fmt"
	"math"
	"strings"
)

// Motive enumerates the basic needs.
type Motive uint8

const (
	Hunger Motive = iota
	Bathroom
	Energy
	Hygiene
	Social
	Fun
	Comfort
	Environment
)

// Count is the total number of motives.
const Count = 8

// DefaultValue is the level every motive starts at when a fella spawns.
const DefaultValue = 0.5

var names = [Count]string{
	"hunger", "bathroom", "energy", "hygiene",
	"social", "fun", "comfort", "environment",
}

// All lists every motive in index order.
func All() [Count]Motive {
	var out [Count]Motive
	for i := range out {
		out[i] = Motive(i)
	}
	return out
}

func (m Motive) String() string {
	if int(m) < Count {
		return names[m]
	}
	return fmt.Sprintf("Motive(%d)", uint8(m))
}

// Valid reports whether m is one of the eight motives.
func (m Motive) Valid() bool {
	return int(m) < Count
}

// Parse converts a lower-case motive name back into a Motive.
func Parse(name string) (Motive, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == name {
			return Motive(i), nil
		}
	}
	return 0, fmt.Errorf("unknown motive %q", name)
}

// State is a fella's current need levels. Owned by exactly one agent.
type State [Count]float32

// Delta is a pending signed change to a State. Consumed immediately by Apply.
type Delta [Count]float32

// Rates are per-simulated-second decay amounts, one per motive.
type Rates [Count]float32

// DefaultRates are the stock balance values.
func DefaultRates() Rates {
	return Rates{
		Hunger:      0.006,
		Bathroom:    0.005,
		Energy:      0.004,
		Hygiene:     0.005,
		Social:      0.005,
		Fun:         0.008,
		Comfort:     0.005,
		Environment: 0.009,
	}
}

// NewState returns a State with every motive at DefaultValue.
func NewState() State {
	var s State
	for i := range s {
		s[i] = DefaultValue
	}
	return s
}

// Get returns the level of motive m.
func (s *State) Get(m Motive) float32 {
	return s[m]
}

// Set stores v, clamped to [0, 1]. Non-finite values are clamped the same way
// Apply treats them.
func (s *State) Set(m Motive, v float32) {
	s[m] = clamp01(v, s[m])
}

// Apply adds every component of d and clamps each channel to [0, 1].
// +Inf saturates to 1, -Inf to 0, and a NaN component is ignored.
func (s *State) Apply(d Delta) {
	for i, dv := range d {
		if dv == 0 {
			continue
		}
		s[i] = clamp01(s[i]+dv, s[i])
	}
}

// Decay drains each motive by rate × dt. A dt that is not a positive finite
// number leaves the state untouched.
func (s *State) Decay(dt float64, rates Rates) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return
	}
	var d Delta
	for i, r := range rates {
		d[i] = -float32(float64(r) * dt)
	}
	s.Apply(d)
}

// Lowest returns the most depleted motive; ties go to the lower index.
func (s *State) Lowest() Motive {
	lowest := Motive(0)
	for i := 1; i < Count; i++ {
		if s[i] < s[lowest] {
			lowest = Motive(i)
		}
	}
	return lowest
}

// Average returns the mean level across all motives.
func (s *State) Average() float32 {
	var sum float32
	for _, v := range s {
		sum += v
	}
	return sum / Count
}

// Map returns the state keyed by motive name, for JSON consumers.
func (s *State) Map() map[string]float32 {
	out := make(map[string]float32, Count)
	for i, v := range s {
		out[names[i]] = v
	}
	return out
}

// Map returns the non-zero components keyed by motive name.
func (d Delta) Map() map[string]float32 {
	out := make(map[string]float32)
	for i, v := range d {
		if v != 0 {
			out[names[i]] = v
		}
	}
	return out
}

// Add returns the component-wise sum of d and o.
func (d Delta) Add(o Delta) Delta {
	for i := range d {
		d[i] += o[i]
	}
	return d
}

func clamp01(v, prev float32) float32 {
	switch {
	case v != v: // NaN
		if prev != prev {
			return 0
		}
		return clamp01(prev, 0)
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
