package agents

import (
	"fmt"

	"github.com/talgya/fella-world/internal/entropy"
	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/world"
)

// DefaultSpeed is the walking speed in world units per simulated second.
const DefaultSpeed = 1.0

// Mover carries fellas toward their walk targets and hands out wander
// targets to idle ones.
type Mover struct {
	Speed          float32
	ArrivalEpsilon float32
	CooldownTicks  uint64
	Bounds         world.Bounds
	Rand           entropy.Source
}

// Advance moves a fella along the straight line to its target by Speed × dt.
// It never overshoots: a step that would pass the target lands on it.
// Returns false when the fella did not move, including when it already
// stands on its target.
func (m *Mover) Advance(a *Agent, dt float64) bool {
	if !(dt > 0) {
		return false
	}

	offset := a.Walk.Target.Sub(a.Position)
	dir, err := offset.Normalize()
	if err != nil {
		// Degenerate direction (already at target): skip this step.
		return false
	}

	step := m.Speed * float32(dt)
	remaining := offset.Len()
	if step >= remaining {
		a.Position = a.Walk.Target
		return true
	}

	next := a.Position.Add(dir.Scale(step))
	if !next.IsFinite() {
		return false
	}
	a.Position = next
	return true
}

// AssignWander gives an idle fella a fresh random target once it has reached
// its current one and at least CooldownTicks have passed since that target
// was assigned. Returns true when a new target was assigned.
func (m *Mover) AssignWander(a *Agent, now simtime.Time) (bool, error) {
	if a.Pending != nil {
		return false, nil
	}
	if a.DistanceToTarget() >= m.ArrivalEpsilon {
		return false, nil
	}

	// Wait a few ticks before assigning a new target to avoid jitter.
	elapsed, err := now.TimeSince(a.Walk.AssignedAt)
	if err != nil {
		return false, fmt.Errorf("%s: wander cooldown: %w", a.Name, err)
	}
	if elapsed < m.CooldownTicks {
		return false, nil
	}

	target := m.Bounds.Lerp(m.Rand.Float64(), m.Rand.Float64())
	if !target.IsFinite() {
		return false, fmt.Errorf("%s: wander target %v: %w", a.Name, target, world.ErrNonFiniteDirection)
	}
	a.Walk = WalkTarget{Target: target, AssignedAt: now}
	return true, nil
}
