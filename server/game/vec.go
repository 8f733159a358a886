package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec2 is a position, velocity or direction in world units
type Vec2 = mgl64.Vec2

// V builds a Vec2 from its components
func V(x, y float64) Vec2 {
	return Vec2{x, y}
}

// Distance returns the euclidean distance between two points
func Distance(a, b Vec2) float64 {
	return b.Sub(a).Len()
}

// Normalize returns v scaled to unit length, or the zero vector if v has none.
// mgl64's own Normalize divides by zero for a zero vector.
func Normalize(v Vec2) Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return v.Mul(1 / l)
}

// IsZero reports whether v has no length
func IsZero(v Vec2) bool {
	return v[0] == 0 && v[1] == 0
}

// FromAngle returns the unit vector pointing at angle a (radians)
func FromAngle(a float64) Vec2 {
	return Vec2{math.Cos(a), math.Sin(a)}
}

// Clamp restricts v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampVec clamps both components of p to [lo, hi]
func ClampVec(p Vec2, lo, hi float64) Vec2 {
	return Vec2{Clamp(p[0], lo, hi), Clamp(p[1], lo, hi)}
}
