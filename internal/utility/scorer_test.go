package utility

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/fella-world/internal/motives"
	"github.com/talgya/fella-world/internal/world"
)

func hungry() motives.State {
	s := motives.NewState()
	s.Set(motives.Hunger, 0.1)
	return s
}

func TestScoreDecreasesWithDistance(t *testing.T) {
	sc := DefaultScorer()
	objects := world.DefaultObjects()
	states := []motives.State{motives.NewState(), hungry(), {}}
	full := motives.State{}
	for i := range full {
		full[i] = 1
	}
	states = append(states, full)

	distances := []float32{0, 0.05, 0.5, 1, 2, 5, 10, 100}
	for _, m := range states {
		for _, o := range objects {
			for i := 1; i < len(distances); i++ {
				near := sc.Score(&m, o, distances[i-1])
				far := sc.Score(&m, o, distances[i])
				if !(near > far) {
					t.Fatalf("%s: score(%v)=%v not above score(%v)=%v for %v",
						o.ID, distances[i-1], near, distances[i], far, m)
				}
			}
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	sc := DefaultScorer()
	m := hungry()
	o := world.DefaultObjects()[0]
	first := sc.Score(&m, o, 3)
	for i := 0; i < 100; i++ {
		if got := sc.Score(&m, o, 3); got != first {
			t.Fatalf("expected %v, got %v", first, got)
		}
	}
}

func TestBenefitFavorsDepletedMotives(t *testing.T) {
	effect := motives.Delta{motives.Hunger: 0.3}

	starving := motives.NewState()
	starving.Set(motives.Hunger, 0.1)
	peckish := motives.NewState()
	peckish.Set(motives.Hunger, 0.6)

	if !(Benefit(&starving, effect) > Benefit(&peckish, effect)) {
		t.Fatalf("expected a starving fella to value food more: %v vs %v",
			Benefit(&starving, effect), Benefit(&peckish, effect))
	}

	full := motives.NewState()
	full.Set(motives.Hunger, 1)
	if b := Benefit(&full, effect); b != 0 {
		t.Fatalf("expected no benefit for a full motive, got %v", b)
	}
}

func TestBestPicksNeededObject(t *testing.T) {
	sc := DefaultScorer()
	m := hungry()
	choice, err := sc.Best(&m, world.V(0, 0), world.DefaultObjects())
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if choice.Object.ID != "hamburger" {
		t.Fatalf("expected hamburger, got %s (%v)", choice.Object.ID, choice.Score)
	}
}

func TestBestIsPermutationStable(t *testing.T) {
	sc := DefaultScorer()
	m := motives.NewState()
	m.Set(motives.Comfort, 0.2)
	m.Set(motives.Energy, 0.3)
	base := world.DefaultObjects()

	want, err := sc.Best(&m, world.V(1, 1), base)
	if err != nil {
		t.Fatalf("best: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		perm := append([]world.Object(nil), base...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		got, err := sc.Best(&m, world.V(1, 1), perm)
		if err != nil {
			t.Fatalf("best: %v", err)
		}
		if got.Object.ID != want.Object.ID {
			t.Fatalf("permutation %d chose %s, expected %s", i, got.Object.ID, want.Object.ID)
		}
	}
}

func TestBestBreaksTiesByID(t *testing.T) {
	sc := DefaultScorer()
	m := hungry()
	effect := motives.Delta{motives.Hunger: 0.4}
	objects := []world.Object{
		{ID: "pizza", Position: world.V(2, 0), Effect: effect},
		{ID: "bagel", Position: world.V(-2, 0), Effect: effect},
		{ID: "salad", Position: world.V(0, 2), Effect: effect},
	}
	for i := 0; i < 3; i++ {
		rotated := append(append([]world.Object(nil), objects[i:]...), objects[:i]...)
		got, err := sc.Best(&m, world.V(0, 0), rotated)
		if err != nil {
			t.Fatalf("best: %v", err)
		}
		if got.Object.ID != "bagel" {
			t.Fatalf("rotation %d: expected bagel on tie, got %s", i, got.Object.ID)
		}
	}

	ranked := sc.Rank(&m, world.V(0, 0), objects)
	if ranked[0].Object.ID != "bagel" || ranked[1].Object.ID != "pizza" || ranked[2].Object.ID != "salad" {
		t.Fatalf("unexpected rank order: %s %s %s", ranked[0].Object.ID, ranked[1].Object.ID, ranked[2].Object.ID)
	}
}

func TestBestReportsNoViableAction(t *testing.T) {
	sc := DefaultScorer()
	var full motives.State
	for i := range full {
		full[i] = 1
	}
	if _, err := sc.Best(&full, world.V(0, 0), world.DefaultObjects()); !errors.Is(err, ErrNoViableAction) {
		t.Fatalf("expected ErrNoViableAction, got %v", err)
	}
	m := motives.NewState()
	if _, err := sc.Best(&m, world.V(0, 0), nil); !errors.Is(err, ErrNoViableAction) {
		t.Fatalf("expected ErrNoViableAction for an empty catalog, got %v", err)
	}
}
