package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/fella-world/internal/motives"
)

// ErrNotFound is returned for lookups with an unknown or stale handle.
var ErrNotFound = errors.New("not found")

// ObjectID identifies a world object. IDs are stable across runs and are the
// tie-breaker when two objects score the same.
type ObjectID string

// Object is a stationary, reusable interactable.
type Object struct {
	ID       ObjectID      `json:"id"`
	Name     string        `json:"name"`
	Position Vec2          `json:"position"`
	Effect   motives.Delta `json:"-"` // Applied once per successful use
}

// Catalog is the immutable table of objects. It is built once at world setup
// and only read afterwards, so it is safe to share between agents.
type Catalog struct {
	byID    map[ObjectID]Object
	ordered []Object // Sorted by ID
}

// NewCatalog validates and indexes the given objects. Every object must have a
// unique, non-empty ID and a finite position inside bounds.
func NewCatalog(objects []Object, bounds Bounds) (*Catalog, error) {
	c := &Catalog{byID: make(map[ObjectID]Object, len(objects))}
	for _, o := range objects {
		if o.ID == "" {
			return nil, fmt.Errorf("object %q: empty id", o.Name)
		}
		if _, dup := c.byID[o.ID]; dup {
			return nil, fmt.Errorf("object %q: duplicate id", o.ID)
		}
		if !o.Position.IsFinite() || !bounds.Contains(o.Position) {
			return nil, fmt.Errorf("object %q: position %v outside world bounds", o.ID, o.Position)
		}
		if o.Name == "" {
			o.Name = string(o.ID)
		}
		c.byID[o.ID] = o
		c.ordered = append(c.ordered, o)
	}
	sort.Slice(c.ordered, func(i, j int) bool {
		return c.ordered[i].ID < c.ordered[j].ID
	})
	return c, nil
}

// Get looks up an object by ID.
func (c *Catalog) Get(id ObjectID) (Object, error) {
	o, ok := c.byID[id]
	if !ok {
		return Object{}, fmt.Errorf("object %q: %w", id, ErrNotFound)
	}
	return o, nil
}

// All returns every object ordered by ID. The slice is shared; do not modify it.
func (c *Catalog) All() []Object {
	return c.ordered
}

// Len returns the number of objects.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// DefaultObjects is the stock household: the four original props plus one
// source for each motive they leave uncovered.
func DefaultObjects() []Object {
	return []Object{
		{ID: "hamburger", Name: "Hamburger", Position: V(0, 2),
			Effect: motives.Delta{motives.Hunger: 0.5, motives.Bathroom: -0.1}},
		{ID: "coffee", Name: "Coffee", Position: V(-2, 2),
			Effect: motives.Delta{motives.Energy: 0.25, motives.Fun: 0.1, motives.Bathroom: -0.1}},
		{ID: "bed", Name: "Bed", Position: V(2, 2),
			Effect: motives.Delta{motives.Energy: 0.6, motives.Comfort: 0.3}},
		{ID: "toilet", Name: "Toilet", Position: V(4, 2),
			Effect: motives.Delta{motives.Bathroom: 0.8, motives.Hygiene: -0.05}},
		{ID: "shower", Name: "Shower", Position: V(6, 2),
			Effect: motives.Delta{motives.Hygiene: 0.7, motives.Comfort: 0.1}},
		{ID: "sofa", Name: "Sofa", Position: V(-4, -2),
			Effect: motives.Delta{motives.Comfort: 0.5, motives.Fun: 0.2}},
		{ID: "telephone", Name: "Telephone", Position: V(-6, 0),
			Effect: motives.Delta{motives.Social: 0.5, motives.Fun: 0.1}},
		{ID: "houseplant", Name: "Houseplant", Position: V(4, -3),
			Effect: motives.Delta{motives.Environment: 0.6}},
	}
}
