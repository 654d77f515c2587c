package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/fella-world/internal/engine"
	"github.com/talgya/fella-world/internal/motives"
	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/utility"
	"github.com/talgya/fella-world/internal/world"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "fellas.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRecordsRun(t *testing.T) {
	db := openTemp(t)
	if db.RunID() == "" {
		t.Fatal("expected a run id")
	}
	got, err := db.GetMeta("last_run_id")
	if err != nil || got != db.RunID() {
		t.Fatalf("expected last_run_id %q, got %q (%v)", db.RunID(), got, err)
	}
	if _, err := db.GetMeta("run_started:" + db.RunID()); err != nil {
		t.Fatalf("expected run start recorded: %v", err)
	}
	if _, err := db.GetMeta("missing"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestSaveEventsNewestFirst(t *testing.T) {
	db := openTemp(t)
	events := []engine.Event{
		{Tick: 1, SimTime: "Year 0, Day 0, 00:01", Agent: "Felix Fella", Category: "spawn", Description: "Felix Fella arrives"},
		{Tick: 5, SimTime: "Year 0, Day 0, 00:05", Agent: "Felix Fella", Category: "use", Description: "Felix Fella uses the Bed"},
	}
	if err := db.SaveEvents(events); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveEvents(nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}

	got, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0] != events[1] || got[1] != events[0] {
		t.Fatalf("unexpected events %+v", got)
	}
}

func TestFlushDrainsSimulation(t *testing.T) {
	db := openTemp(t)

	cat, err := world.NewCatalog(world.DefaultObjects(), world.DefaultBounds())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	sim := engine.NewSimulation(engine.Config{
		StartTick:      simtime.DefaultStartTick,
		Seed:           1,
		Rates:          motives.DefaultRates(),
		Catalog:        cat,
		Scorer:         utility.DefaultScorer(),
		Speed:          1,
		ArrivalEpsilon: 0.1,
		CooldownTicks:  2,
		Bounds:         world.DefaultBounds(),
	})
	sim.SpawnNamed("Felix Fella", world.V(0, 0))
	sim.SpawnNamed("Fiona Fella", world.V(1, 0))
	for i := 0; i < 10; i++ {
		sim.Step(1, simtime.Normal)
	}

	if err := db.Flush(sim); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(sim.TakeUnsaved()) != 0 {
		t.Fatal("expected unsaved events drained")
	}

	events, err := db.RecentEvents(100)
	if err != nil || len(events) < 2 {
		t.Fatalf("expected journaled events, got %d (%v)", len(events), err)
	}

	rows, err := db.StatsHistory(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one stats row, got %d", len(rows))
	}
	r := rows[0]
	if r.Tick != sim.CurrentTick() || r.Population != 2 || r.RunID != db.RunID() {
		t.Fatalf("unexpected stats row %+v", r)
	}
	if len(r.Motives) != motives.Count {
		t.Fatalf("expected %d motives, got %v", motives.Count, r.Motives)
	}

	tick, err := db.GetMeta("last_tick")
	if err != nil || tick == "" {
		t.Fatalf("expected last_tick, got %q (%v)", tick, err)
	}
}

func TestStatsHistoryScopedToRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fellas.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.SaveStats(60, "t", engine.SimStats{Population: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if second.RunID() == first.RunID() {
		t.Fatal("expected a new run id")
	}
	rows, err := second.StatsHistory(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows for new run, got %d", len(rows))
	}
}
