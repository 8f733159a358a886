package game

import "time"

// Config holds every tunable of one arena simulation
type Config struct {
	WorldSize    float64
	BorderSize   float64 // cells are clamped to [BorderSize, WorldSize-BorderSize]
	GridCellSize float64

	FoodCount    int
	VirusCount   int
	FoodSpawnCap int // max food spawned per tick
	FoodRadius   float64
	FoodMinValue float64
	FoodMaxValue float64

	StartMass       float64
	MaxCells        int
	BaseSpeed       float64
	SpeedExponent   float64
	SpeedMultiplier float64
	VelocityBlend   float64 // share of target velocity mixed in per tick
	Friction        float64

	EjectedFriction float64
	EjectedTTL      time.Duration

	QueryMargin float64 // slack added to every neighbour query
	EatMargin   float64
	EatRatio    float64

	VirusSplitThreshold float64 // cells above this mass shatter on a virus
	VirusMaxMass        float64 // viruses above this mass split
	VirusSplitOffset    float64
	VirusMinStartMass   float64
	VirusMaxStartMass   float64
	MaxVirusPieces      int
	VirusPieceMass      float64 // mass per piece used to size the shatter
	VirusPieceSpeed     float64
	VirusPieceMinGap    float64
	VirusPieceMaxGap    float64

	MinSplitMass  float64
	SplitCooldown time.Duration
	SplitSpeed    float64
	MergeTime     time.Duration

	MinEjectMass  float64
	EjectCooldown time.Duration
	EjectFraction float64
	EjectMax      float64
	EjectDistance float64
	EjectSpeed    float64
}

// DefaultConfig returns the standard arena tuning for the given world size
func DefaultConfig(worldSize float64) Config {
	return Config{
		WorldSize:    worldSize,
		BorderSize:   50,
		GridCellSize: 100,

		FoodCount:    1000,
		VirusCount:   50,
		FoodSpawnCap: 50,
		FoodRadius:   3,
		FoodMinValue: 0.5,
		FoodMaxValue: 2.0,

		StartMass:       10,
		MaxCells:        16,
		BaseSpeed:       200,
		SpeedExponent:   0.3,
		SpeedMultiplier: 1,
		VelocityBlend:   0.3,
		Friction:        0.9,

		EjectedFriction: 0.95,
		EjectedTTL:      30 * time.Second,

		QueryMargin: 20,
		EatMargin:   0.3,
		EatRatio:    1.2,

		VirusSplitThreshold: 150,
		VirusMaxMass:        200,
		VirusSplitOffset:    50,
		VirusMinStartMass:   80,
		VirusMaxStartMass:   120,
		MaxVirusPieces:      7,
		VirusPieceMass:      20,
		VirusPieceSpeed:     150,
		VirusPieceMinGap:    20,
		VirusPieceMaxGap:    50,

		MinSplitMass:  20,
		SplitCooldown: time.Second,
		SplitSpeed:    200,
		MergeTime:     15 * time.Second,

		MinEjectMass:  15,
		EjectCooldown: 100 * time.Millisecond,
		EjectFraction: 0.1,
		EjectMax:      10,
		EjectDistance: 15,
		EjectSpeed:    300,
	}
}
