// Command fellasim runs the fella-world needs simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/fella-world/internal/api"
	"github.com/talgya/fella-world/internal/config"
	"github.com/talgya/fella-world/internal/engine"
	"github.com/talgya/fella-world/internal/entropy"
	"github.com/talgya/fella-world/internal/persistence"
	"github.com/talgya/fella-world/internal/world"
)

func main() {
	configPath := flag.String("config", "configs/tuning.yaml", "tuning file (a missing file means defaults)")
	printSchema := flag.Bool("print-schema", false, "print the tuning JSON schema and exit")
	noAPI := flag.Bool("no-api", false, "do not start the HTTP API")
	flag.Parse()

	if *printSchema {
		b, err := config.SchemaJSON()
		if err != nil {
			fmt.Fprintln(os.Stderr, "schema:", err)
			os.Exit(1)
		}
		os.Stdout.Write(append(b, '\n'))
		return
	}

	tuning, fromFile, err := loadTuning(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: tuning.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("Fella World: needs-driven life simulation")
	if fromFile {
		slog.Info("tuning loaded", "path", *configPath)
	} else {
		slog.Warn("tuning file not found, using defaults", "path", *configPath)
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := buildSimulation(tuning)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	for _, f := range tuning.Fellas {
		h := sim.SpawnNamed(f.Name, world.V(f.X, f.Y))
		name, _ := sim.NameOf(h)
		slog.Info("fella spawned", "name", name, "handle", h, "x", f.X, "y", f.Y)
	}

	slog.Info("world ready",
		"fellas", sim.Population(),
		"objects", sim.Catalog.Len(),
		"time", sim.Now(),
		"wander_source", tuning.Movement.WanderSource,
	)

	eng := engine.NewEngine(sim, tuning.Scale())
	eng.FrameInterval = time.Second / time.Duration(tuning.FrameRateHz)

	// ── Journal ───────────────────────────────────────────────────────
	var db *persistence.DB
	if tuning.Journal.Enabled {
		db, err = persistence.Open(tuning.Journal.Path)
		if err != nil {
			slog.Error("failed to open journal", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("journal opened", "path", tuning.Journal.Path, "run_id", db.RunID())
	}

	// Wire boundary callbacks: hourly journal flush, daily report.
	eng.OnHour = func(tick uint64) {
		if db == nil {
			return
		}
		if err := eng.Update(db.Flush); err != nil {
			slog.Error("hourly journal flush failed", "tick", tick, "error", err)
		}
	}
	eng.OnDay = func(tick uint64) {
		dailyReport(eng, tuning.Journal.Path, db != nil)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	var (
		apiServer  *api.Server
		httpServer *http.Server
	)
	if tuning.API.Enabled && !*noAPI {
		adminKey := os.Getenv("FELLAS_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("FELLAS_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		apiServer = &api.Server{
			Eng:            eng,
			DB:             db,
			Port:           tuning.API.Port,
			AdminKey:       adminKey,
			StreamInterval: time.Duration(tuning.API.StreamIntervalMs) * time.Millisecond,
			SpawnBounds:    tuning.Bounds(),
		}
		httpServer = apiServer.Start()
	}

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nFella World is alive: %d fellas, %d objects.\n", sim.Population(), sim.Catalog.Len())
	if apiServer != nil {
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", tuning.API.Port)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(context.Background())

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Warn("HTTP shutdown incomplete", "error", err)
		}
		cancel()
	}

	// Final flush on shutdown.
	if db != nil {
		slog.Info("final journal flush...")
		if err := eng.Update(db.Flush); err != nil {
			slog.Error("final journal flush failed", "error", err)
		}
	}

	fmt.Println("Simulation stopped.")
}

// loadTuning reads the tuning file, falling back to defaults when it does not
// exist. fromFile reports which happened.
func loadTuning(path string) (t config.Tuning, fromFile bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		return config.Default(), false, nil
	}
	t, err = config.Load(path)
	return t, true, err
}

func buildSimulation(t config.Tuning) (*engine.Simulation, error) {
	rates, err := t.Rates()
	if err != nil {
		return nil, err
	}
	catalog, err := t.Catalog()
	if err != nil {
		return nil, err
	}
	src, err := entropy.New(entropy.Kind(t.Movement.WanderSource), t.Seed)
	if err != nil {
		return nil, err
	}

	return engine.NewSimulation(engine.Config{
		StartTick:      t.StartTick,
		Seed:           t.Seed,
		Rates:          rates,
		Catalog:        catalog,
		Scorer:         t.Scorer(),
		Speed:          t.Movement.Speed,
		ArrivalEpsilon: t.Movement.ArrivalEpsilon,
		CooldownTicks:  t.Movement.CooldownTicks,
		Bounds:         t.Bounds(),
		Rand:           src,
	}), nil
}

// dailyReport logs one summary line per sim-day.
func dailyReport(eng *engine.Engine, journalPath string, journaled bool) {
	var attrs []any
	eng.View(func(sim *engine.Simulation) {
		st := sim.Stats
		attrs = []any{
			"time", sim.Now(),
			"population", st.Population,
			"assignments", humanize.Comma(int64(st.Assignments)),
			"uses", humanize.Comma(int64(st.Uses)),
			"avg_overall", fmt.Sprintf("%.3f", st.AvgOverall),
			"lowest_need", st.AvgMotives.Lowest(),
		}
	})
	attrs = append(attrs, "scale", eng.Scale())
	if journaled {
		if fi, err := os.Stat(journalPath); err == nil {
			attrs = append(attrs, "journal_size", humanize.Bytes(uint64(fi.Size())))
		}
	}
	slog.Info("daily report", attrs...)
}
