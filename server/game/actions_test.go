package game

import (
	"math"
	"testing"
	"time"
)

func TestSplitHalvesCell(t *testing.T) {
	e, clock := newTestEngine(t)
	e.addCell("p1", V(1000, 1000), 20)

	if !e.Split("p1") {
		t.Fatal("split should succeed")
	}
	cells := e.OwnerCells("p1")
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(cells))
	}
	for _, c := range cells {
		if c.Mass != 10 {
			t.Errorf("expected mass 10, got %.2f", c.Mass)
		}
		if !c.MergeAt.Equal(clock.Now().Add(15 * time.Second)) {
			t.Errorf("merge time %v, want now+15s", c.MergeAt)
		}
	}
	gap := Distance(cells[0].Pos, cells[1].Pos)
	if !approx(gap, 2*math.Sqrt(10)) {
		t.Errorf("sibling placed %.3f away, want %.3f", gap, 2*math.Sqrt(10))
	}
	if cells[1].Vel != V(200, 0) {
		t.Errorf("sibling velocity %v, want (200,0)", cells[1].Vel)
	}
}

func TestSplitFollowsDirection(t *testing.T) {
	e, _ := newTestEngine(t)
	e.addCell("p1", V(1000, 1000), 100)
	e.SetDirection("p1", V(0, -1))
	e.Split("p1")

	cells := e.OwnerCells("p1")
	if cells[1].Pos[1] >= cells[0].Pos[1] {
		t.Error("sibling should be launched along the steering direction")
	}
}

func TestSplitBelowThreshold(t *testing.T) {
	e, _ := newTestEngine(t)
	c := e.addCell("p1", V(1000, 1000), 19.9)
	if e.Split("p1") {
		t.Error("cell under 20 must not split")
	}
	if c.Mass != 19.9 || e.CellCount("p1") != 1 {
		t.Error("failed split must leave the cell unchanged")
	}
}

func TestSplitCooldown(t *testing.T) {
	e, clock := newTestEngine(t)
	e.addCell("p1", V(1000, 1000), 80)

	e.Split("p1")
	if e.Split("p1") {
		t.Error("split should respect the cooldown")
	}
	clock.Advance(time.Second)
	if !e.Split("p1") {
		t.Error("split should work once the cooldown elapsed")
	}
	if e.CellCount("p1") != 4 {
		t.Errorf("expected 4 cells, got %d", e.CellCount("p1"))
	}
}

func TestSplitRespectsMaxCells(t *testing.T) {
	e, _ := newTestEngine(t)
	for i := range 10 {
		e.addCell("p1", V(100+float64(i)*150, 1000), 40)
	}
	if !e.Split("p1") {
		t.Fatal("split should succeed below the cap")
	}
	if n := e.CellCount("p1"); n != 16 {
		t.Errorf("expected split to stop at 16 cells, got %d", n)
	}
	if e.Split("p1") {
		t.Error("no split allowed at the cap")
	}
}

func TestEjectMass(t *testing.T) {
	e, _ := newTestEngine(t)
	c := e.addCell("p1", V(1000, 1000), 100)

	if !e.Eject("p1") {
		t.Fatal("eject should succeed")
	}
	if !approx(c.Mass, 90) {
		t.Errorf("expected mass 90, got %.2f", c.Mass)
	}
	s := e.Snapshot()
	if len(s.Ejected) != 1 {
		t.Fatalf("expected one ejected mass, got %d", len(s.Ejected))
	}
	ej := s.Ejected[0]
	if ej.Mass != 10 || ej.Vel != V(300, 0) {
		t.Errorf("unexpected ejected mass %+v", ej)
	}
	if !approx(Distance(ej.Pos, c.Pos), c.Radius()+15) {
		t.Errorf("ejected launched at %.2f", Distance(ej.Pos, c.Pos))
	}
}

func TestEjectFractionAndCooldown(t *testing.T) {
	e, clock := newTestEngine(t)
	c := e.addCell("p1", V(1000, 1000), 50)

	e.Eject("p1")
	if !approx(c.Mass, 45) {
		t.Errorf("expected 10%% ejected, mass now %.2f", c.Mass)
	}
	if e.Eject("p1") {
		t.Error("eject should respect the cooldown")
	}
	clock.Advance(100 * time.Millisecond)
	if !e.Eject("p1") {
		t.Error("eject should work after the cooldown")
	}
}

func TestEjectBelowThreshold(t *testing.T) {
	e, _ := newTestEngine(t)
	e.addCell("p1", V(1000, 1000), 14.9)
	if e.Eject("p1") {
		t.Error("cell under 15 must not eject")
	}
	if len(e.Snapshot().Ejected) != 0 {
		t.Error("no ejected mass expected")
	}
}
