package game

import (
	"math"
	"time"
)

// EntityID identifies any entity within one engine; ids are never reused
type EntityID uint32

// Cell is one player-owned mass unit
type Cell struct {
	ID      EntityID
	Owner   string
	Pos     Vec2
	Vel     Vec2
	Mass    float64
	Target  Vec2 // unit direction or zero
	SplitAt time.Time
	EjectAt time.Time
	MergeAt time.Time // merge_eligible_at
}

// Radius is derived from mass on every read
func (c *Cell) Radius() float64 {
	return math.Sqrt(c.Mass)
}

// Speed returns the target speed for a cell of this mass
func (c *Cell) Speed(cfg *Config) float64 {
	return cfg.BaseSpeed * math.Pow(c.Mass, -cfg.SpeedExponent) * cfg.SpeedMultiplier
}

// Food is a static pickup; its radius is fixed
type Food struct {
	ID     EntityID
	Pos    Vec2
	Value  float64
	Radius float64
}

// Virus fragments oversized cells that touch it
type Virus struct {
	ID   EntityID
	Pos  Vec2
	Mass float64
}

func (v *Virus) Radius() float64 {
	return math.Sqrt(v.Mass)
}

// Ejected is mass shed by a player, drifting until absorbed or expired
type Ejected struct {
	ID        EntityID
	Pos       Vec2
	Vel       Vec2
	Mass      float64
	CreatedAt time.Time
}

func (e *Ejected) Radius() float64 {
	return math.Sqrt(e.Mass)
}
