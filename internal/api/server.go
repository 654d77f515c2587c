// Package api provides the HTTP API for observing and steering the fellas.
// GET endpoints are public (read-only observation).
// Admin POST endpoints require a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/talgya/fella-world/internal/engine"
	"github.com/talgya/fella-world/internal/persistence"
	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/world"
)

const maxStreamConns = 8

// Server serves the world state over HTTP.
type Server struct {
	Eng            *engine.Engine
	DB             *persistence.DB // Optional; history endpoints need it
	Port           int
	AdminKey       string // Bearer token for admin POST endpoints. Empty = disabled.
	StreamInterval time.Duration
	SpawnBounds    world.Bounds

	// Picking is cheap but public; keep clients from hammering the lock.
	SelectLimiter *RateLimiter

	streamConns atomic.Int32
}

// Handler builds the full route table. The observer stream is mounted
// outside the gzip wrapper since websocket upgrades must not be compressed.
func (s *Server) Handler() http.Handler {
	if s.SelectLimiter == nil {
		s.SelectLimiter = NewRateLimiter(20, time.Second)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/objects", s.handleObjects)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("/api/v1/selected", s.handleSelected)

	// Picking collaborator (POST, public, rate limited).
	mux.HandleFunc("/api/v1/select", RateLimitMiddleware(s.SelectLimiter, s.handleSelect))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/spawn", s.adminOnly(s.handleSpawn))
	mux.HandleFunc("/api/v1/despawn", s.adminOnly(s.handleDespawn))
	mux.HandleFunc("/api/v1/intervention", s.adminOnly(s.handleIntervention))

	root := http.NewServeMux()
	root.HandleFunc("/api/v1/stream", s.handleStream)
	root.Handle("/", gzhttp.GzipHandler(mux))

	return corsMiddleware(root)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "journal", s.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set FELLAS_CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("FELLAS_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no FELLAS_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Eng.View(func(sim *engine.Simulation) {
		now := sim.Now()
		status = map[string]any{
			"name":        "Fella World",
			"tick":        now.Ticks(),
			"sim_time":    now.String(),
			"population":  sim.Stats.Population,
			"objects":     sim.Catalog.Len(),
			"avg_overall": sim.Stats.AvgOverall,
			"avg_motives": sim.Stats.AvgMotives.Map(),
			"assignments": sim.Stats.Assignments,
			"uses":        sim.Stats.Uses,
		}
	})
	status["scale"] = s.Eng.Scale()
	status["running"] = s.Eng.Running()
	if s.DB != nil {
		status["run_id"] = s.DB.RunID()
	}
	writeJSON(w, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	var snap engine.Snapshot
	s.Eng.View(func(sim *engine.Simulation) {
		snap = sim.Snapshot()
	})

	// Optional state filter ("idle" or "seeking").
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := make([]engine.AgentView, 0, len(snap.Agents))
		for _, a := range snap.Agents {
			if a.State == state {
				filtered = append(filtered, a)
			}
		}
		snap.Agents = filtered
	}
	writeJSON(w, snap.Agents)
}

// handleAgentDetail serves /api/v1/agent/:ref where ref is a handle or a name.
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	if ref == "" {
		http.Error(w, "missing agent", http.StatusBadRequest)
		return
	}

	var (
		detail engine.AgentDetail
		err    error
	)
	s.Eng.View(func(sim *engine.Simulation) {
		var h engine.AgentHandle
		if h, err = sim.Resolve(ref); err != nil {
			return
		}
		detail, err = sim.DetailAgent(h)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, detail)
}

type objectView struct {
	ID       world.ObjectID     `json:"id"`
	Name     string             `json:"name"`
	Position world.Vec2         `json:"position"`
	Effects  map[string]float32 `json:"effects"`
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	var result []objectView
	s.Eng.View(func(sim *engine.Simulation) {
		for _, o := range sim.Catalog.All() {
			result = append(result, objectView{
				ID:       o.ID,
				Name:     o.Name,
				Position: o.Position,
				Effects:  o.Effect.Map(),
			})
		}
	})
	if result == nil {
		result = []objectView{}
	}
	writeJSON(w, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)

	// ?source=journal reads from the database, newest first.
	if r.URL.Query().Get("source") == "journal" {
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		events, err := s.DB.RecentEvents(limit)
		if err != nil {
			slog.Error("journal events query failed", "error", err)
			http.Error(w, "journal query failed", http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []engine.Event{}
		}
		writeJSON(w, events)
		return
	}

	var events []engine.Event
	s.Eng.View(func(sim *engine.Simulation) {
		events = sim.RecentEvents(len(sim.Events))
	})

	// Optional filters.
	category := r.URL.Query().Get("category")
	agent := r.URL.Query().Get("agent")
	if category != "" || agent != "" {
		filtered := events[:0]
		for _, e := range events {
			if (category == "" || e.Category == category) && (agent == "" || e.Agent == agent) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	rows, err := s.DB.StatsHistory(queryLimit(r, 30, 1000))
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// Return empty array instead of error; table may not have data yet.
		writeJSON(w, []persistence.StatsRow{})
		return
	}
	if rows == nil {
		rows = []persistence.StatsRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleSelected(w http.ResponseWriter, r *http.Request) {
	var (
		view engine.AgentView
		ok   bool
	)
	s.Eng.View(func(sim *engine.Simulation) {
		h, sel := sim.Selected()
		if !sel {
			return
		}
		v, err := sim.ViewAgent(h)
		if err == nil {
			view, ok = v, true
		}
	})
	if !ok {
		writeJSON(w, map[string]any{"selected": nil})
		return
	}
	writeJSON(w, map[string]any{"selected": view})
}

// handleSelect records the fella the user picked. An empty agent clears the
// selection.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Agent string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var h engine.AgentHandle
	err := s.Eng.Update(func(sim *engine.Simulation) error {
		if req.Agent == "" {
			sim.ClearSelection()
			return nil
		}
		var err error
		if h, err = sim.Resolve(req.Agent); err != nil {
			return err
		}
		return sim.NotifySelected(h)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Agent == "" {
		writeJSON(w, map[string]any{"selected": nil})
		return
	}
	slog.Debug("fella selected", "handle", h)
	writeJSON(w, map[string]any{"selected": h})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Scale string `json:"scale"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		scale, err := simtime.ParseTimeScale(req.Scale)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.Eng.SetScale(scale)
	}

	scale := s.Eng.Scale()
	writeJSON(w, map[string]any{"scale": scale, "multiplier": scale.Multiplier()})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Name string  `json:"name,omitempty"`
		X    float32 `json:"x"`
		Y    float32 `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	pos := world.V(req.X, req.Y)
	if !pos.IsFinite() || !s.SpawnBounds.Contains(pos) {
		http.Error(w, fmt.Sprintf("position %v outside world bounds", pos), http.StatusBadRequest)
		return
	}

	var (
		h    engine.AgentHandle
		name string
	)
	s.Eng.Update(func(sim *engine.Simulation) error {
		h = sim.SpawnNamed(strings.TrimSpace(req.Name), pos)
		name, _ = sim.NameOf(h)
		return nil
	})

	slog.Info("fella spawned via API", "agent", name, "handle", h)
	writeJSONStatus(w, http.StatusCreated, map[string]any{"handle": h, "name": name})
}

func (s *Server) handleDespawn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Agent string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var h engine.AgentHandle
	err := s.Eng.Update(func(sim *engine.Simulation) error {
		var err error
		if h, err = sim.Resolve(req.Agent); err != nil {
			return err
		}
		return sim.Despawn(h)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("fella despawned via API", "handle", h)
	writeJSON(w, map[string]any{"despawned": h})
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type   string  `json:"type"`
		Agent  string  `json:"agent"`
		Motive string  `json:"motive,omitempty"`
		Amount float32 `json:"amount,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var desc string
	err := s.Eng.Update(func(sim *engine.Simulation) error {
		h, err := sim.Resolve(req.Agent)
		if err != nil {
			return err
		}
		switch req.Type {
		case "nudge":
			desc, err = sim.NudgeMotive(h, req.Motive, req.Amount)
		case "cancel":
			desc, err = sim.CancelAction(h)
		default:
			err = fmt.Errorf("unknown intervention type %q (want nudge or cancel)", req.Type)
		}
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{"type": req.Type, "description": desc})
}

// queryLimit reads ?limit=, falling back to def when absent or out of range.
func queryLimit(r *http.Request, def, max int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, engine.ErrNotFound) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write json failed", "error", err)
	}
}
