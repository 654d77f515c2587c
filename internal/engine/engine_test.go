package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/talgya/fella-world/internal/agents"
	"github.com/talgya/fella-world/internal/entropy"
	"github.com/talgya/fella-world/internal/motives"
	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/utility"
	"github.com/talgya/fella-world/internal/world"
)

func newSim(t *testing.T, objects []world.Object, startTick uint64) *Simulation {
	t.Helper()
	cat, err := world.NewCatalog(objects, world.DefaultBounds())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return NewSimulation(Config{
		StartTick:      startTick,
		Seed:           42,
		Rates:          motives.DefaultRates(),
		Catalog:        cat,
		Scorer:         utility.DefaultScorer(),
		Speed:          agents.DefaultSpeed,
		ArrivalEpsilon: agents.DefaultArrivalEpsilon,
		CooldownTicks:  agents.DefaultCooldownTicks,
		Bounds:         world.DefaultBounds(),
		Rand:           entropy.NewSeeded(7),
	})
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestHandleLifecycle(t *testing.T) {
	sim := newSim(t, world.DefaultObjects(), simtime.DefaultStartTick)

	felix := sim.SpawnNamed("Felix Fella", world.V(0, 0))
	fiona := sim.SpawnNamed("Fiona Fella", world.V(1, 0))
	if sim.Population() != 2 {
		t.Fatalf("expected 2 fellas, got %d", sim.Population())
	}

	if err := sim.Despawn(felix); err != nil {
		t.Fatalf("despawn: %v", err)
	}
	if _, err := sim.MotiveOf(felix, motives.Hunger); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for despawned fella, got %v", err)
	}
	if err := sim.Despawn(felix); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double despawn, got %v", err)
	}

	// The freed slot is reused under a new generation.
	third := sim.SpawnAgent(world.V(2, 0))
	if third.Index != felix.Index || third.Generation == felix.Generation {
		t.Fatalf("expected slot %d reused with new generation, got %s (old %s)", felix.Index, third, felix)
	}
	if _, err := sim.NameOf(felix); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale handle resolved after slot reuse: %v", err)
	}
	if name, err := sim.NameOf(fiona); err != nil || name != "Fiona Fella" {
		t.Fatalf("expected Fiona Fella, got %q (%v)", name, err)
	}

	got := sim.AgentsInOrder()
	if len(got) != 2 || got[0] != third || got[1] != fiona {
		t.Fatalf("unexpected handle order %v", got)
	}
}

func TestUnknownHandle(t *testing.T) {
	sim := newSim(t, nil, 0)
	if _, err := sim.PositionOf(AgentHandle{Index: 3}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := sim.NotifySelected(AgentHandle{Index: 3}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPausedStepChangesNothing(t *testing.T) {
	sim := newSim(t, world.DefaultObjects(), simtime.DefaultStartTick)
	sim.SpawnNamed("Felix Fella", world.V(0, 0))
	sim.SpawnNamed("Fiona Fella", world.V(1, 0))

	before := sim.Snapshot()
	for i := 0; i < 100; i++ {
		sim.Step(1, simtime.Paused)
	}
	after := sim.Snapshot()

	if before.Tick != after.Tick || sim.Now() != simtime.FromTicks(simtime.DefaultStartTick) {
		t.Fatalf("clock moved while paused: %d -> %d", before.Tick, after.Tick)
	}
	for i := range before.Agents {
		b, a := before.Agents[i], after.Agents[i]
		if b.Position != a.Position || b.State != a.State {
			t.Fatalf("fella %s changed while paused", b.Name)
		}
		for k, v := range b.Motives {
			if a.Motives[k] != v {
				t.Fatalf("%s %s changed while paused: %v -> %v", b.Name, k, v, a.Motives[k])
			}
		}
	}
}

func TestStepDecaysMotives(t *testing.T) {
	sim := newSim(t, nil, 0)
	h := sim.SpawnNamed("Felix Fella", world.V(0, 0))

	sim.Step(10, simtime.Normal)

	hunger, err := sim.MotiveOf(h, motives.Hunger)
	if err != nil {
		t.Fatalf("motive: %v", err)
	}
	if !near(hunger, 0.44) {
		t.Fatalf("expected hunger 0.44 after 10 ticks, got %v", hunger)
	}
	if sim.CurrentTick() != 10 {
		t.Fatalf("expected tick 10, got %d", sim.CurrentTick())
	}

	// The same real delta at Fastest covers four times the sim time.
	sim.Step(10, simtime.Fastest)
	if sim.CurrentTick() != 50 {
		t.Fatalf("expected tick 50, got %d", sim.CurrentTick())
	}
}

func TestStepRejectsBadDelta(t *testing.T) {
	sim := newSim(t, nil, 100)
	sim.SpawnAgent(world.V(0, 0))
	for _, d := range []float64{-1, math.NaN(), math.Inf(1)} {
		sim.Step(d, simtime.Normal)
	}
	if sim.CurrentTick() != 100 {
		t.Fatalf("expected clock to stay at 100, got %d", sim.CurrentTick())
	}
}

func TestHungryFellaEats(t *testing.T) {
	sim := newSim(t, world.DefaultObjects(), simtime.DefaultStartTick)
	h := sim.SpawnNamed("Felix Fella", world.V(0, 0))
	a, err := sim.Agent(h)
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	a.Motives.Set(motives.Hunger, 0.1)

	sim.Step(0.5, simtime.Normal)
	if st, _ := sim.StateOf(h); st != agents.StateSeeking {
		t.Fatalf("expected seeking after first step, got %s", st)
	}
	v, _ := sim.ViewAgent(h)
	if v.Pending != "hamburger" {
		t.Fatalf("expected hamburger, got %q", v.Pending)
	}

	for i := 0; i < 20; i++ {
		sim.Step(0.5, simtime.Normal)
	}
	hunger, _ := sim.MotiveOf(h, motives.Hunger)
	if hunger < 0.5 {
		t.Fatalf("expected hunger restored, got %v", hunger)
	}
	if sim.Stats.Uses == 0 || sim.Stats.Assignments == 0 {
		t.Fatalf("expected stats to count use, got %+v", sim.Stats)
	}

	var used bool
	for _, e := range sim.TakeUnsaved() {
		if e.Category == "use" && e.Agent == "Felix Fella" {
			used = true
		}
	}
	if !used {
		t.Fatal("expected a use event")
	}
	if len(sim.TakeUnsaved()) != 0 {
		t.Fatal("expected unsaved queue drained")
	}
	if len(sim.RecentEvents(1000)) == 0 {
		t.Fatal("expected recent events retained after drain")
	}
}

func TestSelectionClearedOnDespawn(t *testing.T) {
	sim := newSim(t, nil, 0)
	felix := sim.SpawnNamed("Felix Fella", world.V(0, 0))
	fiona := sim.SpawnNamed("Fiona Fella", world.V(1, 0))

	if err := sim.NotifySelected(fiona); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got, ok := sim.Selected(); !ok || got != fiona {
		t.Fatalf("expected Fiona selected, got %v %v", got, ok)
	}
	if snap := sim.Snapshot(); snap.Selected != fiona.String() || !snap.Agents[1].Selected || snap.Agents[0].Selected {
		t.Fatalf("snapshot does not reflect selection: %+v", snap)
	}

	if err := sim.Despawn(felix); err != nil {
		t.Fatalf("despawn: %v", err)
	}
	if _, ok := sim.Selected(); !ok {
		t.Fatal("despawning another fella cleared the selection")
	}
	if err := sim.Despawn(fiona); err != nil {
		t.Fatalf("despawn: %v", err)
	}
	if _, ok := sim.Selected(); ok {
		t.Fatal("expected selection cleared")
	}
}

func TestEventRingBounded(t *testing.T) {
	sim := newSim(t, nil, 0)
	for i := 0; i < maxEvents+50; i++ {
		sim.SpawnAgent(world.V(0, 0))
	}
	if len(sim.Events) != maxEvents {
		t.Fatalf("expected %d events, got %d", maxEvents, len(sim.Events))
	}
	if got := len(sim.RecentEvents(10)); got != 10 {
		t.Fatalf("expected 10 recent events, got %d", got)
	}
}

func TestParseHandle(t *testing.T) {
	h := AgentHandle{Index: 12, Generation: 3}
	got, err := ParseHandle(h.String())
	if err != nil || got != h {
		t.Fatalf("expected %v, got %v (%v)", h, got, err)
	}
	for _, bad := range []string{"", "12", "a.b", "1.-1", "1.2.3"} {
		if _, err := ParseHandle(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestEngineHooks(t *testing.T) {
	// Start ten minutes before midnight.
	sim := newSim(t, nil, simtime.TicksPerDay-10)
	eng := NewEngine(sim, simtime.Normal)

	var hours, days []uint64
	eng.OnHour = func(tick uint64) { hours = append(hours, tick) }
	eng.OnDay = func(tick uint64) { days = append(days, tick) }

	eng.Frame(5)
	if len(hours) != 0 || len(days) != 0 {
		t.Fatalf("hooks fired early: hours=%v days=%v", hours, days)
	}
	eng.Frame(5)
	if len(hours) != 1 || len(days) != 1 || days[0] != simtime.TicksPerDay {
		t.Fatalf("expected one hour and one day hook, got hours=%v days=%v", hours, days)
	}

	eng.SetScale(simtime.Paused)
	eng.Frame(1000)
	if len(hours) != 1 {
		t.Fatalf("hook fired while paused: %v", hours)
	}

	eng.SetScale(simtime.Fastest)
	eng.Frame(15) // 60 ticks
	if len(hours) != 2 {
		t.Fatalf("expected second hour hook, got %v", hours)
	}
}

func TestEngineRunStop(t *testing.T) {
	sim := newSim(t, nil, 0)
	sim.SpawnAgent(world.V(0, 0))
	eng := NewEngine(sim, simtime.Fastest)
	eng.FrameInterval = time.Millisecond

	done := make(chan struct{})
	go func() {
		eng.Run(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for eng.Now() == 0 {
		select {
		case <-deadline:
			t.Fatal("engine did not advance")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	eng.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	if eng.Running() {
		t.Fatal("expected engine stopped")
	}
}

func TestEngineUpdateError(t *testing.T) {
	eng := NewEngine(newSim(t, nil, 0), simtime.Normal)
	err := eng.Update(func(s *Simulation) error {
		return s.Despawn(AgentHandle{})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInterventions(t *testing.T) {
	sim := newSim(t, world.DefaultObjects(), simtime.DefaultStartTick)
	h := sim.SpawnNamed("Felix Fella", world.V(0, 0))

	if _, err := sim.NudgeMotive(h, "hunger", -0.45); err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if v, _ := sim.MotiveOf(h, motives.Hunger); !near(v, 0.05) {
		t.Fatalf("expected hunger 0.05, got %v", v)
	}
	if _, err := sim.NudgeMotive(h, "boredom", 0.1); err == nil {
		t.Fatal("expected unknown motive error")
	}
	if _, err := sim.NudgeMotive(h, "fun", float32(math.Inf(1))); err == nil {
		t.Fatal("expected non-finite amount error")
	}

	if _, err := sim.CancelAction(h); err == nil {
		t.Fatal("expected nothing to cancel")
	}
	sim.Step(0.5, simtime.Normal)
	if _, err := sim.CancelAction(h); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if st, _ := sim.StateOf(h); st != agents.StateIdle {
		t.Fatalf("expected idle after cancel, got %s", st)
	}

	for _, ref := range []string{"Felix Fella", h.String()} {
		got, err := sim.Resolve(ref)
		if err != nil || got != h {
			t.Fatalf("resolve %q: got %v (%v)", ref, got, err)
		}
	}
	if _, err := sim.Resolve("Nobody Fella"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := sim.Resolve("9.0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDetailRanksCandidates(t *testing.T) {
	sim := newSim(t, world.DefaultObjects(), simtime.DefaultStartTick)
	h := sim.SpawnNamed("Felix Fella", world.V(0, 0))
	if _, err := sim.NudgeMotive(h, "hunger", -0.4); err != nil {
		t.Fatalf("nudge: %v", err)
	}

	d, err := sim.DetailAgent(h)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(d.Candidates) != len(world.DefaultObjects()) {
		t.Fatalf("expected every object ranked, got %d", len(d.Candidates))
	}
	if d.Candidates[0].Object != "hamburger" {
		t.Fatalf("expected hamburger first, got %+v", d.Candidates[0])
	}
	for i := 1; i < len(d.Candidates); i++ {
		if d.Candidates[i].Score > d.Candidates[i-1].Score {
			t.Fatalf("candidates out of order at %d: %+v", i, d.Candidates)
		}
	}
}
