package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/fella-world/internal/agents"
	"github.com/talgya/fella-world/internal/motives"
)

// NudgeMotive adds amount to one of a fella's motives, clamped like any
// object effect. Used by operators to provoke behavior.
func (s *Simulation) NudgeMotive(h AgentHandle, motive string, amount float32) (string, error) {
	a, err := s.Agent(h)
	if err != nil {
		return "", err
	}
	m, err := motives.Parse(motive)
	if err != nil {
		return "", err
	}
	if math.IsNaN(float64(amount)) || math.IsInf(float64(amount), 0) {
		return "", fmt.Errorf("nudge amount %v is not finite", amount)
	}

	before := a.Motives.Get(m)
	var d motives.Delta
	d[m] = amount
	a.Motives.Apply(d)
	after := a.Motives.Get(m)

	desc := fmt.Sprintf("%s feels a change in %s (%.2f -> %.2f)", a.Name, m, before, after)
	s.record(a.Name, "intervention", desc)

	slog.Info("nudge intervention", "agent", a.Name, "motive", m, "from", before, "to", after)
	return desc, nil
}

// CancelAction drops a fella's pending action so it reconsiders next step.
func (s *Simulation) CancelAction(h AgentHandle) (string, error) {
	a, err := s.Agent(h)
	if err != nil {
		return "", err
	}
	id, ok := agents.Cancel(a, s.Now())
	if !ok {
		return "", fmt.Errorf("%s has nothing to cancel", a.Name)
	}

	desc := fmt.Sprintf("%s changes their mind about the %s", a.Name, id)
	s.record(a.Name, "intervention", desc)

	slog.Info("cancel intervention", "agent", a.Name, "object", id)
	return desc, nil
}

// FindByName looks up a live fella by display name (case-sensitive). The
// first match in table order wins.
func (s *Simulation) FindByName(name string) (AgentHandle, error) {
	for _, h := range s.AgentsInOrder() {
		if s.slots[h.Index].agent.Name == name {
			return h, nil
		}
	}
	return AgentHandle{}, fmt.Errorf("fella %q: %w", name, ErrNotFound)
}

// Resolve accepts either a handle ("3.0") or a display name.
func (s *Simulation) Resolve(ref string) (AgentHandle, error) {
	if h, err := ParseHandle(ref); err == nil {
		if _, err := s.Agent(h); err != nil {
			return AgentHandle{}, err
		}
		return h, nil
	}
	return s.FindByName(ref)
}
