// Agent spawning: names and initial state for new fellas.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/fella-world/internal/simtime"
	"github.com/talgya/fella-world/internal/world"
)

// Spawner creates fellas for the simulation.
type Spawner struct {
	rng  *rand.Rand
	used map[string]int
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:  rand.New(rand.NewSource(seed + 300)),
		used: make(map[string]int),
	}
}

// Spawn creates a fella at pos. An empty name draws one from the name pool.
func (s *Spawner) Spawn(name string, pos world.Vec2, now simtime.Time) *Agent {
	if name == "" {
		name = s.generateName()
	} else {
		s.used[name]++
	}
	return New(name, pos, now)
}

// generateName draws a first name and disambiguates repeats with a numeral,
// so two fellas are never shown with the same label.
func (s *Spawner) generateName() string {
	base := firstNames[s.rng.Intn(len(firstNames))] + " Fella"
	s.used[base]++
	if n := s.used[base]; n > 1 {
		return fmt.Sprintf("%s %d", base, n)
	}
	return base
}

// Name pool for procedural generation.
var firstNames = []string{
	"Felix", "Fiona", "Frida", "Fergus", "Flora", "Floyd", "Fern", "Franco",
	"Faye", "Finn", "Freya", "Fabian", "Felicity", "Forrest", "Fatima", "Fritz",
}
