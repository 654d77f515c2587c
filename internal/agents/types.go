// Package agents provides the fella data model, the per-agent action selector
// and the movement executor.
package agents

import (
	"github.com/talgya/fella-world/internal/motives"
	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/world"
)

// Agent is a fella: a named character whose motives decay and who walks to
// objects to restore them.
type Agent struct {
	Name     string     `json:"name"`
	Position world.Vec2 `json:"position"`

	// Needs, owned exclusively by this agent.
	Motives motives.State `json:"motives"`

	// Where the fella is heading. Used for both wandering and seeking.
	Walk WalkTarget `json:"walk"`

	// At most one commitment at a time. nil while idle.
	Pending *PendingAction `json:"pending,omitempty"`

	// Recent object uses, newest last.
	Memories []Memory `json:"memories,omitempty"`

	SpawnedAt simtime.Time `json:"spawned_at"`
}

// WalkTarget is a destination and the time it was assigned.
type WalkTarget struct {
	Target     world.Vec2   `json:"target"`
	AssignedAt simtime.Time `json:"assigned_at"`
}

// PendingAction is a commitment to walk to an object and use it.
type PendingAction struct {
	Object     world.ObjectID `json:"object"`
	AssignedAt simtime.Time   `json:"assigned_at"`
}

// State is the selector state a fella is in between steps. Using is
// transient: it happens inside a single step and returns to Idle.
type State uint8

const (
	StateIdle State = iota
	StateSeeking
)

func (s State) String() string {
	if s == StateSeeking {
		return "seeking"
	}
	return "idle"
}

// New creates a fella at pos with default motives, targeting its own spawn
// point so it stands still until the wander cooldown elapses.
func New(name string, pos world.Vec2, now simtime.Time) *Agent {
	return &Agent{
		Name:      name,
		Position:  pos,
		Motives:   motives.NewState(),
		Walk:      WalkTarget{Target: pos, AssignedAt: now},
		SpawnedAt: now,
	}
}

// State reports whether the fella is idle or seeking an object.
func (a *Agent) State() State {
	if a.Pending != nil {
		return StateSeeking
	}
	return StateIdle
}

// DistanceToTarget returns how far the fella is from its walk target.
func (a *Agent) DistanceToTarget() float32 {
	return a.Position.Distance(a.Walk.Target)
}
