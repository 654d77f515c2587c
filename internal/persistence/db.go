// Package persistence journals simulation events and statistics to SQLite.
// The journal is write-only telemetry; a simulation is never restored from it.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/fella-world/internal/engine"
)

// DB wraps a SQLite connection for the event journal.
type DB struct {
	conn  *sqlx.DB
	runID string
}

// StatsRow is one hourly statistics sample.
type StatsRow struct {
	RunID       string             `db:"run_id" json:"run_id"`
	Tick        uint64             `db:"tick" json:"tick"`
	SimTime     string             `db:"sim_time" json:"sim_time"`
	Population  int                `db:"population" json:"population"`
	AvgOverall  float64            `db:"avg_overall" json:"avg_overall"`
	Assignments uint64             `db:"assignments" json:"assignments"`
	Uses        uint64             `db:"uses" json:"uses"`
	MotivesJSON string             `db:"motives_json" json:"-"`
	Motives     map[string]float32 `db:"-" json:"motives"`
}

// Open opens or creates a SQLite database at the given path and starts a new
// run with a fresh run id.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; SQLite serializes anyway.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, runID: uuid.NewString()}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := db.SaveMeta("last_run_id", db.runID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("save run id: %w", err)
	}
	if err := db.SaveMeta("run_started:"+db.runID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("save run start: %w", err)
	}

	slog.Debug("journal run started", "run_id", db.runID, "path", path)
	return db, nil
}

// RunID identifies this process's rows in the journal.
func (db *DB) RunID() string {
	return db.runID
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		sim_time TEXT NOT NULL,
		agent TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stats_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		sim_time TEXT NOT NULL,
		population INTEGER NOT NULL,
		avg_overall REAL NOT NULL,
		assignments INTEGER NOT NULL,
		uses INTEGER NOT NULL,
		motives_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_stats_run ON stats_history(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(run_id, tick, sim_time, agent, category, description)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(db.runID, e.Tick, e.SimTime, e.Agent, e.Category, e.Description); err != nil {
			return fmt.Errorf("insert event at tick %d: %w", e.Tick, err)
		}
	}

	return tx.Commit()
}

// SaveStats appends one statistics sample.
func (db *DB) SaveStats(tick uint64, simTime string, stats engine.SimStats) error {
	motivesJSON, err := json.Marshal(stats.AvgMotives.Map())
	if err != nil {
		return fmt.Errorf("encode motives: %w", err)
	}

	_, err = db.conn.Exec(`INSERT INTO stats_history
		(run_id, tick, sim_time, population, avg_overall, assignments, uses, motives_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		db.runID, tick, simTime, stats.Population, stats.AvgOverall,
		stats.Assignments, stats.Uses, string(motivesJSON),
	)
	return err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// Flush drains the simulation's unsaved events and records a stats sample.
// The caller must hold exclusive access to sim.
func (db *DB) Flush(sim *engine.Simulation) error {
	events := sim.TakeUnsaved()
	if err := db.SaveEvents(events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	now := sim.Now()
	if err := db.SaveStats(now.Ticks(), now.String(), sim.Stats); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	if err := db.SaveMeta("last_tick", fmt.Sprintf("%d", now.Ticks())); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Debug("journal flushed", "events", len(events), "tick", now.Ticks())
	return nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, sim_time, agent, category, description FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// StatsHistory returns the most recent N statistics samples of this run,
// newest first.
func (db *DB) StatsHistory(limit int) ([]StatsRow, error) {
	var rows []StatsRow
	err := db.conn.Select(&rows,
		`SELECT run_id, tick, sim_time, population, avg_overall, assignments, uses, motives_json
		FROM stats_history WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		db.runID, limit,
	)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if err := json.Unmarshal([]byte(rows[i].MotivesJSON), &rows[i].Motives); err != nil {
			return nil, fmt.Errorf("decode motives at tick %d: %w", rows[i].Tick, err)
		}
	}
	return rows, nil
}
