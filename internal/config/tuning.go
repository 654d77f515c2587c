// Package config loads the simulation tuning file. Values not present in the
// file keep their defaults.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/fella-world/internal/agents"
	"github.com/talgya/fella-world/internal/entropy"
	"github.com/talgya/fella-world/internal/motives"
	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/utility"
	"github.com/talgya/fella-world/internal/world"
)

type Tuning struct {
	Seed        int64  `yaml:"seed" json:"seed"`
	StartTick   uint64 `yaml:"start_tick" json:"start_tick"`
	FrameRateHz int    `yaml:"frame_rate_hz" json:"frame_rate_hz"`
	TimeScale   string `yaml:"time_scale" json:"time_scale" jsonschema:"enum=paused,enum=normal,enum=fast,enum=fastest"`
	LogLevel    string `yaml:"log_level" json:"log_level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	// Drain per simulated second (one tick), keyed by motive name.
	DecayRates map[string]float32 `yaml:"decay_rates" json:"decay_rates"`

	Scoring  Scoring  `yaml:"scoring" json:"scoring"`
	Movement Movement `yaml:"movement" json:"movement"`

	Objects []ObjectSpec `yaml:"objects" json:"objects"`
	Fellas  []FellaSpec  `yaml:"fellas" json:"fellas"`

	API     API     `yaml:"api" json:"api"`
	Journal Journal `yaml:"journal" json:"journal"`
}

type Scoring struct {
	DistancePenalty float32 `yaml:"distance_penalty" json:"distance_penalty"`
	MinUtility      float32 `yaml:"min_utility" json:"min_utility"`
}

type Movement struct {
	Speed          float32    `yaml:"speed" json:"speed"`
	ArrivalEpsilon float32    `yaml:"arrival_epsilon" json:"arrival_epsilon"`
	CooldownTicks  uint64     `yaml:"cooldown_ticks" json:"cooldown_ticks"`
	WanderSource   string     `yaml:"wander_source" json:"wander_source" jsonschema:"enum=seeded,enum=noise,enum=crypto"`
	Bounds         BoundsSpec `yaml:"bounds" json:"bounds"`
}

type BoundsSpec struct {
	MinX float32 `yaml:"min_x" json:"min_x"`
	MinY float32 `yaml:"min_y" json:"min_y"`
	MaxX float32 `yaml:"max_x" json:"max_x"`
	MaxY float32 `yaml:"max_y" json:"max_y"`
}

type ObjectSpec struct {
	ID      string             `yaml:"id" json:"id" jsonschema:"required"`
	Name    string             `yaml:"name" json:"name"`
	X       float32            `yaml:"x" json:"x" jsonschema:"required"`
	Y       float32            `yaml:"y" json:"y" jsonschema:"required"`
	Effects map[string]float32 `yaml:"effects" json:"effects" jsonschema:"required"`
}

type FellaSpec struct {
	Name string  `yaml:"name" json:"name"`
	X    float32 `yaml:"x" json:"x" jsonschema:"required"`
	Y    float32 `yaml:"y" json:"y" jsonschema:"required"`
}

type API struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	Port             int  `yaml:"port" json:"port"`
	StreamIntervalMs int  `yaml:"stream_interval_ms" json:"stream_interval_ms"`
}

type Journal struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// Default returns the stock tuning.
func Default() Tuning {
	rates := motives.DefaultRates()
	decay := make(map[string]float32, motives.Count)
	for _, m := range motives.All() {
		decay[m.String()] = rates[m]
	}

	b := world.DefaultBounds()
	return Tuning{
		Seed:        42,
		StartTick:   simtime.DefaultStartTick,
		FrameRateHz: 30,
		TimeScale:   simtime.Normal.String(),
		LogLevel:    "info",
		DecayRates:  decay,
		Scoring: Scoring{
			DistancePenalty: utility.DefaultDistancePenalty,
			MinUtility:      utility.DefaultMinUtility,
		},
		Movement: Movement{
			Speed:          agents.DefaultSpeed,
			ArrivalEpsilon: agents.DefaultArrivalEpsilon,
			CooldownTicks:  agents.DefaultCooldownTicks,
			WanderSource:   string(entropy.KindSeeded),
			Bounds:         BoundsSpec{MinX: b.Min.X, MinY: b.Min.Y, MaxX: b.Max.X, MaxY: b.Max.Y},
		},
		Objects: objectSpecs(world.DefaultObjects()),
		Fellas: []FellaSpec{
			{Name: "Felix Fella", X: 0, Y: 0},
			{Name: "Fiona Fella", X: 1, Y: 0},
		},
		API: API{
			Enabled:          true,
			Port:             8080,
			StreamIntervalMs: 250,
		},
		Journal: Journal{
			Enabled: true,
			Path:    "data/fellas.db",
		},
	}
}

// Load reads a YAML tuning file, validates it against the tuning schema and
// overlays it on Default.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

// Parse is Load without the file read.
func Parse(raw []byte) (Tuning, error) {
	t := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return t, nil
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := validateDocument(doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// validateDocument checks the generic YAML document against the schema. The
// document goes through JSON first so numbers and maps have JSON types.
func validateDocument(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert to json: %w", err)
	}
	var inst any
	if err := json.Unmarshal(b, &inst); err != nil {
		return fmt.Errorf("convert to json: %w", err)
	}
	return schema.Validate(inst)
}

// Validate checks the semantic constraints the schema cannot express.
func (t Tuning) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if t.FrameRateHz <= 0 {
		add("frame_rate_hz must be positive")
	}
	if _, err := simtime.ParseTimeScale(t.TimeScale); err != nil {
		add("time_scale: %v", err)
	}
	if _, err := t.Rates(); err != nil {
		add("decay_rates: %v", err)
	}
	if !(t.Scoring.DistancePenalty > 0) {
		add("scoring.distance_penalty must be positive")
	}
	if !(t.Movement.Speed > 0) {
		add("movement.speed must be positive")
	}
	if !(t.Movement.ArrivalEpsilon > 0) {
		add("movement.arrival_epsilon must be positive")
	}
	if !t.Bounds().Valid() {
		add("movement.bounds is empty or inverted")
	}
	if _, err := entropy.New(entropy.Kind(t.Movement.WanderSource), t.Seed); err != nil {
		add("movement.wander_source: %v", err)
	}
	if _, err := t.Catalog(); err != nil {
		add("objects: %v", err)
	}
	for i, f := range t.Fellas {
		if !t.Bounds().Contains(world.V(f.X, f.Y)) {
			add("fellas[%d]: spawn point (%v, %v) outside bounds", i, f.X, f.Y)
		}
	}
	if t.API.Enabled && (t.API.Port <= 0 || t.API.Port > 65535) {
		add("api.port out of range")
	}
	if t.API.StreamIntervalMs <= 0 {
		add("api.stream_interval_ms must be positive")
	}
	if t.Journal.Enabled && t.Journal.Path == "" {
		add("journal.path is required when the journal is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid tuning: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Rates converts the named decay rates. Motives missing from the map keep
// their default rate.
func (t Tuning) Rates() (motives.Rates, error) {
	rates := motives.DefaultRates()
	names := make([]string, 0, len(t.DecayRates))
	for name := range t.DecayRates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m, err := motives.Parse(name)
		if err != nil {
			return rates, err
		}
		r := t.DecayRates[name]
		if r < 0 || r != r {
			return rates, fmt.Errorf("%s: rate must be a non-negative number", name)
		}
		rates[m] = r
	}
	return rates, nil
}

// Scale returns the configured starting time scale.
func (t Tuning) Scale() simtime.TimeScale {
	s, err := simtime.ParseTimeScale(t.TimeScale)
	if err != nil {
		return simtime.Normal
	}
	return s
}

// Bounds returns the walkable rectangle.
func (t Tuning) Bounds() world.Bounds {
	b := t.Movement.Bounds
	return world.Bounds{Min: world.V(b.MinX, b.MinY), Max: world.V(b.MaxX, b.MaxY)}
}

// Scorer returns the configured utility scorer.
func (t Tuning) Scorer() utility.Scorer {
	return utility.Scorer{
		DistancePenalty: t.Scoring.DistancePenalty,
		MinUtility:      t.Scoring.MinUtility,
	}
}

// Catalog builds the world object catalog.
func (t Tuning) Catalog() (*world.Catalog, error) {
	objects := make([]world.Object, 0, len(t.Objects))
	for _, spec := range t.Objects {
		var effect motives.Delta
		for name, v := range spec.Effects {
			m, err := motives.Parse(name)
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", spec.ID, err)
			}
			effect[m] = v
		}
		objects = append(objects, world.Object{
			ID:       world.ObjectID(spec.ID),
			Name:     spec.Name,
			Position: world.V(spec.X, spec.Y),
			Effect:   effect,
		})
	}
	return world.NewCatalog(objects, t.Bounds())
}

// Level maps log_level onto slog.
func (t Tuning) Level() slog.Level {
	switch strings.ToLower(t.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func objectSpecs(objects []world.Object) []ObjectSpec {
	out := make([]ObjectSpec, 0, len(objects))
	for _, o := range objects {
		out = append(out, ObjectSpec{
			ID:      string(o.ID),
			Name:    o.Name,
			X:       o.Position.X,
			Y:       o.Position.Y,
			Effects: o.Effect.Map(),
		})
	}
	return out
}
