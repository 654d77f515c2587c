package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/fella-world/internal/simtime"
)

// Frame loop defaults.
const (
	DefaultFrameInterval = time.Second / 30
	MaxFrameDelta        = 0.25 // Real seconds; longer stalls are clamped
)

// Engine drives a Simulation from wall-clock time and serializes access to it.
type Engine struct {
	FrameInterval time.Duration

	// Callbacks fired after a frame crosses a sim-hour or sim-day boundary.
	// They run outside the lock and may call View or Update.
	OnHour func(tick uint64)
	OnDay  func(tick uint64)

	mu    sync.RWMutex
	sim   *Simulation
	scale simtime.TimeScale

	runMu   sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewEngine wraps sim with the given starting time scale.
func NewEngine(sim *Simulation, scale simtime.TimeScale) *Engine {
	return &Engine{
		FrameInterval: DefaultFrameInterval,
		sim:           sim,
		scale:         scale,
	}
}

// Run steps the simulation once per frame until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.runMu.Lock()
	e.cancel = cancel
	e.running = true
	e.runMu.Unlock()
	defer func() {
		e.runMu.Lock()
		e.running = false
		e.cancel = nil
		e.runMu.Unlock()
	}()

	interval := e.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("simulation engine started", "time", e.Now(), "scale", e.Scale())

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "time", e.Now())
			return
		case now := <-ticker.C:
			real := now.Sub(last).Seconds()
			last = now
			if real > MaxFrameDelta {
				real = MaxFrameDelta
			}
			e.Frame(real)
		}
	}
}

// Stop halts a running loop. It is safe to call at any time.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

// Frame advances the simulation by realDelta seconds of wall time at the
// current scale, then fires any boundary hooks.
func (e *Engine) Frame(realDelta float64) {
	e.mu.Lock()
	before := e.sim.CurrentTick()
	e.sim.Step(realDelta, e.scale)
	after := e.sim.CurrentTick()
	e.mu.Unlock()

	// Every sim-hour: journal flush.
	if after/simtime.TicksPerHour > before/simtime.TicksPerHour && e.OnHour != nil {
		e.OnHour(after)
	}

	// Every sim-day: daily report.
	if after/simtime.TicksPerDay > before/simtime.TicksPerDay && e.OnDay != nil {
		e.OnDay(after)
	}
}

// Scale returns the current time scale.
func (e *Engine) Scale() simtime.TimeScale {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scale
}

// SetScale changes the time scale from the next frame on.
func (e *Engine) SetScale(s simtime.TimeScale) {
	e.mu.Lock()
	prev := e.scale
	e.scale = s
	e.mu.Unlock()
	if prev != s {
		slog.Info("time scale changed", "from", prev, "to", s)
	}
}

// Now returns the current simulation time.
func (e *Engine) Now() simtime.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.Now()
}

// View runs fn with shared read access to the simulation.
func (e *Engine) View(fn func(*Simulation)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.sim)
}

// Update runs fn with exclusive access to the simulation.
func (e *Engine) Update(fn func(*Simulation) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sim)
}
