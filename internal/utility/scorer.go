// Package utility scores candidate object uses against a fella's motives.
package utility

import (
	"errors"
	"math"
	"sort"

	"github.com/talgya/fella-world/internal/motives"
	"github.com/talgya/fella-world/internal/world"
)

// ErrNoViableAction means no candidate cleared the minimum utility. It is the
// normal outcome for a content fella and leads to wandering.
var ErrNoViableAction = errors.New("no viable action")

// Default scoring constants.
const (
	DefaultDistancePenalty = 0.25
	DefaultMinUtility      = 0.01
)

// Scorer ranks objects. It holds only constants and is safe to copy.
type Scorer struct {
	DistancePenalty float32 // k in benefit / (1 + k·distance); must be > 0
	MinUtility      float32 // Scores at or below this are not worth walking for
}

// DefaultScorer returns a Scorer with the stock constants.
func DefaultScorer() Scorer {
	return Scorer{
		DistancePenalty: DefaultDistancePenalty,
		MinUtility:      DefaultMinUtility,
	}
}

// Choice is a scored candidate.
type Choice struct {
	Object   world.Object `json:"object"`
	Score    float32      `json:"score"`
	Distance float32      `json:"distance"`
}

// Benefit estimates how much using an object with the given effect would help.
// Each change is clipped to what the motive can actually absorb and weighted
// by how depleted that motive is, so topping up an empty need beats topping
// up a full one.
func Benefit(m *motives.State, effect motives.Delta) float32 {
	var total float32
	for i, e := range effect {
		if e == 0 || e != e {
			continue
		}
		v := m[i]
		change := e
		if change > 1-v {
			change = 1 - v
		}
		if change < -v {
			change = -v
		}
		total += change * (1 - v)
	}
	return total
}

// Score combines Benefit with a distance penalty. The result strictly
// decreases as distance grows: a positive benefit is divided by (1 + k·d) and
// a non-positive one has k·d subtracted.
func (s Scorer) Score(m *motives.State, o world.Object, distance float32) float32 {
	d := float64(distance)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return float32(math.Inf(-1))
	}
	if distance < 0 {
		distance = 0
	}

	b := Benefit(m, o.Effect)
	if b > 0 {
		return b / (1 + s.DistancePenalty*distance)
	}
	return b - s.DistancePenalty*distance
}

// Rank scores every object from the given position and orders them best
// first. Equal scores are ordered by ascending object ID and NaN scores sink
// to the end, so the order never depends on the input order.
func (s Scorer) Rank(m *motives.State, from world.Vec2, objects []world.Object) []Choice {
	out := make([]Choice, 0, len(objects))
	for _, o := range objects {
		dist := from.Distance(o.Position)
		out = append(out, Choice{Object: o, Score: s.Score(m, o, dist), Distance: dist})
	}
	sort.Slice(out, func(i, j int) bool {
		return better(out[i], out[j])
	})
	return out
}

// Best returns the highest ranked object, or ErrNoViableAction when nothing
// scores above MinUtility.
func (s Scorer) Best(m *motives.State, from world.Vec2, objects []world.Object) (Choice, error) {
	var (
		best  Choice
		found bool
	)
	for _, o := range objects {
		dist := from.Distance(o.Position)
		c := Choice{Object: o, Score: s.Score(m, o, dist), Distance: dist}
		if c.Score != c.Score {
			continue
		}
		if !found || better(c, best) {
			best, found = c, true
		}
	}
	if !found || !(best.Score > s.MinUtility) {
		return Choice{}, ErrNoViableAction
	}
	return best, nil
}

func better(a, b Choice) bool {
	aNaN, bNaN := a.Score != a.Score, b.Score != b.Score
	switch {
	case aNaN != bNaN:
		return bNaN
	case !aNaN && a.Score != b.Score:
		return a.Score > b.Score
	}
	return a.Object.ID < b.Object.ID
}
