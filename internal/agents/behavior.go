// Action selection: a needs-driven state machine.
// Idle fellas pick the best-scoring object; seeking fellas walk to it and
// use it once they arrive and the cooldown has passed.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/utility"
	"github.com/talgya/fella-world/internal/world"
)

// Default selection constants.
const (
	DefaultArrivalEpsilon = 0.1
	DefaultCooldownTicks  = 2
)

// OutcomeKind enumerates what a selector update did.
type OutcomeKind uint8

const (
	OutcomeIdle      OutcomeKind = iota // Nothing worth doing; wander
	OutcomeAssigned                     // New pending action
	OutcomeSeeking                      // Still walking (or waiting out the cooldown)
	OutcomeUsed                         // Arrived and applied the object's effect
	OutcomeCancelled                    // Pending object vanished
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAssigned:
		return "assigned"
	case OutcomeSeeking:
		return "seeking"
	case OutcomeUsed:
		return "used"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Outcome is the result of one selector update for one fella.
type Outcome struct {
	Kind   OutcomeKind
	Object world.Object
	Score  float32 // Utility at assignment, or benefit realized on use
}

// Selector runs the per-agent decision logic against a shared catalog.
type Selector struct {
	Catalog        *world.Catalog
	Scorer         utility.Scorer
	ArrivalEpsilon float32
	CooldownTicks  uint64
}

// Update advances a fella's state machine by one step.
// An error is scoped to this fella; the caller should log it and carry on.
func (s *Selector) Update(a *Agent, now simtime.Time) (Outcome, error) {
	if a.Pending == nil {
		return s.choose(a, now)
	}

	obj, err := s.Catalog.Get(a.Pending.Object)
	if err != nil {
		a.Pending = nil
		return Outcome{Kind: OutcomeCancelled}, fmt.Errorf("%s: pending action: %w", a.Name, err)
	}

	// Objects are stationary, but keep the target pinned to the object.
	a.Walk.Target = obj.Position

	if a.Position.Distance(obj.Position) >= s.ArrivalEpsilon {
		return Outcome{Kind: OutcomeSeeking, Object: obj}, nil
	}

	// Arrived. Wait a few ticks before using to avoid jitter.
	elapsed, err := now.TimeSince(a.Pending.AssignedAt)
	if err != nil {
		return Outcome{Kind: OutcomeSeeking, Object: obj}, fmt.Errorf("%s: use cooldown: %w", a.Name, err)
	}
	if elapsed < s.CooldownTicks {
		return Outcome{Kind: OutcomeSeeking, Object: obj}, nil
	}

	benefit := utility.Benefit(&a.Motives, obj.Effect)
	a.Motives.Apply(obj.Effect)
	a.Pending = nil
	AddMemory(a, now.Ticks(), "used the "+obj.Name, clampImportance(benefit))

	return Outcome{Kind: OutcomeUsed, Object: obj, Score: benefit}, nil
}

func (s *Selector) choose(a *Agent, now simtime.Time) (Outcome, error) {
	choice, err := s.Scorer.Best(&a.Motives, a.Position, s.Catalog.All())
	if errors.Is(err, utility.ErrNoViableAction) {
		return Outcome{Kind: OutcomeIdle}, nil
	}
	if err != nil {
		return Outcome{Kind: OutcomeIdle}, fmt.Errorf("%s: choose action: %w", a.Name, err)
	}

	a.Pending = &PendingAction{Object: choice.Object.ID, AssignedAt: now}
	a.Walk = WalkTarget{Target: choice.Object.Position, AssignedAt: now}

	return Outcome{Kind: OutcomeAssigned, Object: choice.Object, Score: choice.Score}, nil
}

// Cancel drops the fella's pending action, if any, leaving it idle where it
// stands. Returns the abandoned object ID.
func Cancel(a *Agent, now simtime.Time) (world.ObjectID, bool) {
	if a.Pending == nil {
		return "", false
	}
	id := a.Pending.Object
	a.Pending = nil
	a.Walk = WalkTarget{Target: a.Position, AssignedAt: now}
	return id, true
}

func clampImportance(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
