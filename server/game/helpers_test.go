package game

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestEngine returns an empty arena with a frozen clock and a fixed seed
func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	return newEmptyEngine()
}

func newEmptyEngine() (*Engine, *fakeClock) {
	cfg := DefaultConfig(2000)
	cfg.FoodCount = 0
	cfg.VirusCount = 0
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	e := NewEngine(cfg, WithClock(clock.Now), WithRand(rand.New(rand.NewPCG(1, 2))))
	return e, clock
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func totalCellMass(e *Engine) float64 {
	total := 0.0
	for _, c := range e.cells {
		total += c.Mass
	}
	return total
}
