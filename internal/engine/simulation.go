// Package engine ties the clock, motives, selector and movement together and
// drives them from a real-time frame loop.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/fella-world/internal/agents"
	"github.com/talgya/fella-world/internal/entropy"
	"github.com/talgya/fella-world/internal/motives"
	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/utility"
	"github.com/talgya/fella-world/internal/world"
)

// ErrNotFound is returned for stale or unknown agent and object handles.
var ErrNotFound = world.ErrNotFound

const maxEvents = 1000

// Config holds everything needed to build a Simulation.
type Config struct {
	StartTick      uint64
	Seed           int64
	Rates          motives.Rates
	Catalog        *world.Catalog
	Scorer         utility.Scorer
	Speed          float32
	ArrivalEpsilon float32
	CooldownTicks  uint64
	Bounds         world.Bounds
	Rand           entropy.Source // Wander targets; nil means seeded from Seed
}

// Simulation holds the complete world state. It is single-threaded: callers
// that share it between goroutines go through Engine.
type Simulation struct {
	Clock    *simtime.Clock
	Catalog  *world.Catalog
	Rates    motives.Rates
	Selector *agents.Selector
	Mover    *agents.Mover
	Spawner  *agents.Spawner

	slots    []slot
	free     []uint32
	selected *AgentHandle

	Events  []Event // Recent events, bounded
	unsaved []Event // Not yet written to the journal

	Stats SimStats
}

type slot struct {
	gen   uint32
	agent *agents.Agent // nil when free
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	SimTime     string `json:"sim_time" db:"sim_time"`
	Agent       string `json:"agent" db:"agent"`
	Category    string `json:"category" db:"category"` // "action", "use", "cancel", "spawn", "despawn"
	Description string `json:"description" db:"description"`
}

// SimStats tracks aggregate statistics.
type SimStats struct {
	Population  int           `json:"population"`
	AvgMotives  motives.State `json:"-"`
	AvgOverall  float32       `json:"avg_overall"`
	Assignments uint64        `json:"assignments"`
	Uses        uint64        `json:"uses"`
}

// NewSimulation creates an empty world from cfg.
func NewSimulation(cfg Config) *Simulation {
	src := cfg.Rand
	if src == nil {
		src = entropy.NewSeeded(cfg.Seed)
	}
	return &Simulation{
		Clock:   simtime.NewClock(cfg.StartTick),
		Catalog: cfg.Catalog,
		Rates:   cfg.Rates,
		Selector: &agents.Selector{
			Catalog:        cfg.Catalog,
			Scorer:         cfg.Scorer,
			ArrivalEpsilon: cfg.ArrivalEpsilon,
			CooldownTicks:  cfg.CooldownTicks,
		},
		Mover: &agents.Mover{
			Speed:          cfg.Speed,
			ArrivalEpsilon: cfg.ArrivalEpsilon,
			CooldownTicks:  cfg.CooldownTicks,
			Bounds:         cfg.Bounds,
			Rand:           src,
		},
		Spawner: agents.NewSpawner(cfg.Seed),
	}
}

// Now returns the current simulation time.
func (s *Simulation) Now() simtime.Time {
	return s.Clock.Now()
}

// CurrentTick returns the current tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.Clock.Ticks()
}

// SpawnAgent creates a fella with a generated name at pos.
func (s *Simulation) SpawnAgent(pos world.Vec2) AgentHandle {
	return s.SpawnNamed("", pos)
}

// SpawnNamed creates a fella with the given display name at pos.
func (s *Simulation) SpawnNamed(name string, pos world.Vec2) AgentHandle {
	a := s.Spawner.Spawn(name, pos, s.Now())

	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[idx].agent = a
	} else {
		idx = uint32(len(s.slots))
		s.slots = append(s.slots, slot{agent: a})
	}
	h := AgentHandle{Index: idx, Generation: s.slots[idx].gen}

	s.record(a.Name, "spawn", fmt.Sprintf("%s arrives at %v", a.Name, pos))
	slog.Debug("fella spawned", "agent", a.Name, "handle", h, "position", pos)
	s.updateStats()
	return h
}

// Despawn removes a fella. Its handle, and any copy of it, stops resolving.
func (s *Simulation) Despawn(h AgentHandle) error {
	a, err := s.Agent(h)
	if err != nil {
		return err
	}
	s.slots[h.Index].agent = nil
	s.slots[h.Index].gen++
	s.free = append(s.free, h.Index)
	if s.selected != nil && *s.selected == h {
		s.selected = nil
	}

	s.record(a.Name, "despawn", a.Name+" leaves")
	s.updateStats()
	return nil
}

// Agent resolves a handle. The returned fella is owned by the simulation;
// callers must not keep it past the current step.
func (s *Simulation) Agent(h AgentHandle) (*agents.Agent, error) {
	if int(h.Index) >= len(s.slots) {
		return nil, fmt.Errorf("agent %s: %w", h, ErrNotFound)
	}
	sl := s.slots[h.Index]
	if sl.agent == nil || sl.gen != h.Generation {
		return nil, fmt.Errorf("agent %s: %w", h, ErrNotFound)
	}
	return sl.agent, nil
}

// AgentsInOrder lists live fellas in table order.
func (s *Simulation) AgentsInOrder() []AgentHandle {
	out := make([]AgentHandle, 0, len(s.slots)-len(s.free))
	for i, sl := range s.slots {
		if sl.agent != nil {
			out = append(out, AgentHandle{Index: uint32(i), Generation: sl.gen})
		}
	}
	return out
}

// Population returns the number of live fellas.
func (s *Simulation) Population() int {
	return len(s.slots) - len(s.free)
}

// MotiveOf returns the current level of one motive.
func (s *Simulation) MotiveOf(h AgentHandle, m motives.Motive) (float32, error) {
	a, err := s.Agent(h)
	if err != nil {
		return 0, err
	}
	if !m.Valid() {
		return 0, fmt.Errorf("motive %d: %w", m, ErrNotFound)
	}
	return a.Motives.Get(m), nil
}

// MotivesOf returns a copy of all motive levels.
func (s *Simulation) MotivesOf(h AgentHandle) (motives.State, error) {
	a, err := s.Agent(h)
	if err != nil {
		return motives.State{}, err
	}
	return a.Motives, nil
}

// PositionOf returns where the fella stands.
func (s *Simulation) PositionOf(h AgentHandle) (world.Vec2, error) {
	a, err := s.Agent(h)
	if err != nil {
		return world.Vec2{}, err
	}
	return a.Position, nil
}

// NameOf returns the display label.
func (s *Simulation) NameOf(h AgentHandle) (string, error) {
	a, err := s.Agent(h)
	if err != nil {
		return "", err
	}
	return a.Name, nil
}

// StateOf reports whether the fella is idle or seeking.
func (s *Simulation) StateOf(h AgentHandle) (agents.State, error) {
	a, err := s.Agent(h)
	if err != nil {
		return agents.StateIdle, err
	}
	return a.State(), nil
}

// NotifySelected records which fella the user has picked. Selection has no
// effect on behavior; it is kept for the UI to query.
func (s *Simulation) NotifySelected(h AgentHandle) error {
	if _, err := s.Agent(h); err != nil {
		return err
	}
	sel := h
	s.selected = &sel
	return nil
}

// Selected returns the picked fella, if any.
func (s *Simulation) Selected() (AgentHandle, bool) {
	if s.selected == nil {
		return AgentHandle{}, false
	}
	return *s.selected, true
}

// ClearSelection forgets the picked fella.
func (s *Simulation) ClearSelection() {
	s.selected = nil
}

// Step advances the whole simulation by one frame. Order per step: clock,
// then for each fella decay, action selection, wandering, movement. A paused
// step changes nothing.
func (s *Simulation) Step(realDelta float64, scale simtime.TimeScale) {
	delta, ok := s.Clock.Advance(realDelta, scale)
	if !ok {
		return
	}
	now := s.Clock.Now()

	for i := range s.slots {
		a := s.slots[i].agent
		if a == nil {
			continue
		}
		s.stepAgent(AgentHandle{Index: uint32(i), Generation: s.slots[i].gen}, a, delta, now)
	}

	s.updateStats()
}

func (s *Simulation) stepAgent(h AgentHandle, a *agents.Agent, delta float64, now simtime.Time) {
	// Decay needs (passage of time).
	a.Motives.Decay(delta, s.Rates)

	out, err := s.Selector.Update(a, now)
	if err != nil {
		slog.Warn("action selection failed", "agent", a.Name, "handle", h, "error", err)
	}

	switch out.Kind {
	case agents.OutcomeAssigned:
		s.Stats.Assignments++
		s.record(a.Name, "action", fmt.Sprintf("%s heads for the %s", a.Name, out.Object.Name))
		slog.Debug("action assigned",
			"agent", a.Name,
			"object", out.Object.ID,
			"utility", fmt.Sprintf("%.3f", out.Score),
			"lowest", a.Motives.Lowest(),
		)
	case agents.OutcomeUsed:
		s.Stats.Uses++
		s.record(a.Name, "use", fmt.Sprintf("%s uses the %s", a.Name, out.Object.Name))
		slog.Debug("object used", "agent", a.Name, "object", out.Object.ID, "benefit", fmt.Sprintf("%.3f", out.Score))
	case agents.OutcomeCancelled:
		s.record(a.Name, "cancel", a.Name+" gives up on an object that no longer exists")
	}

	if assigned, err := s.Mover.AssignWander(a, now); err != nil {
		slog.Warn("wander assignment failed", "agent", a.Name, "handle", h, "error", err)
	} else if assigned {
		slog.Debug("assigned new walk target", "agent", a.Name, "target", a.Walk.Target)
	}

	s.Mover.Advance(a, delta)
}

func (s *Simulation) record(agent, category, description string) {
	now := s.Clock.Now()
	e := Event{
		Tick:        now.Ticks(),
		SimTime:     now.String(),
		Agent:       agent,
		Category:    category,
		Description: description,
	}
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
	s.unsaved = append(s.unsaved, e)
	if len(s.unsaved) > maxEvents {
		s.unsaved = s.unsaved[len(s.unsaved)-maxEvents:]
	}
}

// TakeUnsaved returns events recorded since the last call and forgets them.
func (s *Simulation) TakeUnsaved() []Event {
	out := s.unsaved
	s.unsaved = nil
	return out
}

// RecentEvents returns up to n of the newest events, newest last.
func (s *Simulation) RecentEvents(n int) []Event {
	if n <= 0 {
		return nil
	}
	if n > len(s.Events) {
		n = len(s.Events)
	}
	out := make([]Event, n)
	copy(out, s.Events[len(s.Events)-n:])
	return out
}

func (s *Simulation) updateStats() {
	var sum [motives.Count]float32
	alive := 0
	for _, sl := range s.slots {
		if sl.agent == nil {
			continue
		}
		alive++
		for i, v := range sl.agent.Motives {
			sum[i] += v
		}
	}

	s.Stats.Population = alive
	s.Stats.AvgMotives = motives.State{}
	s.Stats.AvgOverall = 0
	if alive > 0 {
		for i := range sum {
			s.Stats.AvgMotives[i] = sum[i] / float32(alive)
		}
		s.Stats.AvgOverall = s.Stats.AvgMotives.Average()
	}
}
