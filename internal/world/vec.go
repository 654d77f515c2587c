// Package world provides the continuous 2D space fellas walk in and the
// read-only catalog of interactable objects placed in it.
package world

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonFiniteDirection is returned when a direction cannot be derived from a
// vector, either because it has zero length or because it is not finite.
var ErrNonFiniteDirection = errors.New("non-finite direction")

// Vec2 is a position or offset in world units.
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// V is shorthand for Vec2{x, y}.
func V(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale multiplies both components by k.
func (v Vec2) Scale(k float32) Vec2 { return Vec2{v.X * k, v.Y * k} }

// Len returns the Euclidean length.
func (v Vec2) Len() float32 {
	return float32(math.Hypot(float64(v.X), float64(v.Y)))
}

// Distance returns the straight-line distance between v and o.
func (v Vec2) Distance(o Vec2) float32 {
	return o.Sub(v).Len()
}

// IsFinite reports whether both components are finite.
func (v Vec2) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y)
}

// Normalize returns the unit vector pointing the same way as v.
func (v Vec2) Normalize() (Vec2, error) {
	l := v.Len()
	if l == 0 || !isFinite(l) {
		return Vec2{}, fmt.Errorf("normalize %v: %w", v, ErrNonFiniteDirection)
	}
	n := Vec2{v.X / l, v.Y / l}
	if !n.IsFinite() {
		return Vec2{}, fmt.Errorf("normalize %v: %w", v, ErrNonFiniteDirection)
	}
	return n, nil
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

// Bounds is an axis-aligned rectangle, inclusive of its edges.
type Bounds struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

// DefaultBounds is the walkable area: x in [-8, 8], y in [-4, 4].
func DefaultBounds() Bounds {
	return Bounds{Min: V(-8, -4), Max: V(8, 4)}
}

// Contains reports whether p lies inside b.
func (b Bounds) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Lerp maps (u, v) in [0, 1]² onto the rectangle.
func (b Bounds) Lerp(u, v float64) Vec2 {
	return Vec2{
		X: b.Min.X + float32(u)*(b.Max.X-b.Min.X),
		Y: b.Min.Y + float32(v)*(b.Max.Y-b.Min.Y),
	}
}

// Valid reports whether the rectangle is finite and non-inverted.
func (b Bounds) Valid() bool {
	return b.Min.IsFinite() && b.Max.IsFinite() && b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y
}
