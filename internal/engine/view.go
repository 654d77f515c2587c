package engine

import (
	"github.com/talgya/fella-world/internal/agents"
	"github.com/talgya/fella-world/internal/world"
)

// AgentView is a read-only copy of one fella, safe to hand out of the lock.
type AgentView struct {
	Handle   AgentHandle        `json:"handle"`
	Name     string             `json:"name"`
	Position world.Vec2         `json:"position"`
	Target   world.Vec2         `json:"target"`
	State    string             `json:"state"`
	Pending  world.ObjectID     `json:"pending,omitempty"`
	Motives  map[string]float32 `json:"motives"`
	Lowest   string             `json:"lowest"`
	Selected bool               `json:"selected"`
}

// Candidate is one scored object as the fella currently sees it.
type Candidate struct {
	Object   world.ObjectID `json:"object"`
	Name     string         `json:"name"`
	Score    float32        `json:"score"`
	Distance float32        `json:"distance"`
}

// AgentDetail adds memories and the ranked object list to AgentView.
type AgentDetail struct {
	AgentView
	SpawnedAt  string          `json:"spawned_at"`
	Memories   []agents.Memory `json:"memories"`
	Candidates []Candidate     `json:"candidates"`
}

// Snapshot is the whole visible world at one instant.
type Snapshot struct {
	Tick       uint64      `json:"tick"`
	SimTime    string      `json:"sim_time"`
	Population int         `json:"population"`
	Selected   string      `json:"selected,omitempty"`
	Agents     []AgentView `json:"agents"`
}

func (s *Simulation) view(h AgentHandle, a *agents.Agent) AgentView {
	v := AgentView{
		Handle:   h,
		Name:     a.Name,
		Position: a.Position,
		Target:   a.Walk.Target,
		State:    a.State().String(),
		Motives:  a.Motives.Map(),
		Lowest:   a.Motives.Lowest().String(),
	}
	if a.Pending != nil {
		v.Pending = a.Pending.Object
	}
	if s.selected != nil && *s.selected == h {
		v.Selected = true
	}
	return v
}

// ViewAgent returns a copy of one fella.
func (s *Simulation) ViewAgent(h AgentHandle) (AgentView, error) {
	a, err := s.Agent(h)
	if err != nil {
		return AgentView{}, err
	}
	return s.view(h, a), nil
}

// DetailAgent returns a copy of one fella including its memories, newest
// first, and every object ranked best first.
func (s *Simulation) DetailAgent(h AgentHandle) (AgentDetail, error) {
	a, err := s.Agent(h)
	if err != nil {
		return AgentDetail{}, err
	}
	d := AgentDetail{
		AgentView: s.view(h, a),
		SpawnedAt: a.SpawnedAt.String(),
		Memories:  agents.RecentMemories(a, agents.MaxMemories),
	}
	for _, c := range s.Selector.Scorer.Rank(&a.Motives, a.Position, s.Catalog.All()) {
		d.Candidates = append(d.Candidates, Candidate{
			Object:   c.Object.ID,
			Name:     c.Object.Name,
			Score:    c.Score,
			Distance: c.Distance,
		})
	}
	return d, nil
}

// Snapshot copies every live fella in table order.
func (s *Simulation) Snapshot() Snapshot {
	now := s.Now()
	snap := Snapshot{
		Tick:       now.Ticks(),
		SimTime:    now.String(),
		Population: s.Population(),
		Agents:     make([]AgentView, 0, s.Population()),
	}
	if s.selected != nil {
		snap.Selected = s.selected.String()
	}
	for _, h := range s.AgentsInOrder() {
		snap.Agents = append(snap.Agents, s.view(h, s.slots[h.Index].agent))
	}
	return snap
}
