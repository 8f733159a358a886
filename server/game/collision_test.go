package game

import (
	"math"
	"testing"
	"time"
)

func TestPredationEatsSmallerCell(t *testing.T) {
	e, _ := newTestEngine(t)
	a := e.addCell("alice", V(500, 500), 40)
	b := e.addCell("bob", V(501, 500), 10)

	res := e.Tick(1.0 / 30)

	if _, ok := e.cells[b.ID]; ok {
		t.Fatal("smaller cell should be eaten")
	}
	if !approx(a.Mass, 50) {
		t.Errorf("expected eater mass 50, got %.2f", a.Mass)
	}
	if len(res.Predations) != 1 || res.Predations[0].Eater != "alice" || res.Predations[0].Victim != "bob" {
		t.Errorf("unexpected predation events %+v", res.Predations)
	}
	if len(res.Eliminated) != 1 || res.Eliminated[0] != "bob" {
		t.Errorf("bob should be eliminated, got %v", res.Eliminated)
	}
	if e.HasPlayer("bob") {
		t.Error("eliminated owner should have no cell set")
	}
}

func TestPredationRequiresMassRatio(t *testing.T) {
	e, _ := newTestEngine(t)
	a := e.addCell("alice", V(500, 500), 40)
	b := e.addCell("bob", V(500, 500), 34) // 40 < 34*1.2

	e.Tick(1.0 / 30)

	if _, ok := e.cells[b.ID]; !ok {
		t.Error("cell within the mass ratio must survive")
	}
	if a.Mass != 40 {
		t.Errorf("eater mass should be unchanged, got %.2f", a.Mass)
	}
}

func TestPredationRequiresMargin(t *testing.T) {
	e, _ := newTestEngine(t)
	e.addCell("alice", V(500, 500), 100) // r=10
	b := e.addCell("bob", V(509, 500), 16) // needs d < 10 - 4*0.3 = 8.8

	e.Tick(1.0 / 30)
	if _, ok := e.cells[b.ID]; !ok {
		t.Error("cell outside the eat margin must survive")
	}
}

func TestPredationSkipsSameOwnerAndTeam(t *testing.T) {
	e, _ := newTestEngine(t)
	a := e.addCell("alice", V(500, 500), 100)
	a2 := e.addCell("alice", V(500, 500), 10)
	a2.MergeAt = e.now().Add(time.Minute)
	a.MergeAt = a2.MergeAt

	e.SetTeam("carol", 1)
	e.SetTeam("dave", 1)
	c := e.addCell("carol", V(1200, 1200), 100)
	d := e.addCell("dave", V(1200, 1200), 10)

	e.Tick(1.0 / 30)

	if _, ok := e.cells[a2.ID]; !ok {
		t.Error("a cell must not eat its own sibling")
	}
	if _, ok := e.cells[d.ID]; !ok {
		t.Error("teammates must not eat each other")
	}
	if c.Mass != 100 {
		t.Errorf("teammate mass changed to %.2f", c.Mass)
	}
}

func TestPredationVictimCannotAlsoEat(t *testing.T) {
	e, _ := newTestEngine(t)
	big := e.addCell("a", V(500, 500), 400)
	e.addCell("b", V(500, 500), 100)
	e.addCell("c", V(500, 500), 10)

	e.Tick(1.0 / 30)

	if len(e.cells) != 1 {
		t.Fatalf("expected only the largest cell to survive, have %d cells", len(e.cells))
	}
	if !approx(big.Mass, 510) {
		t.Errorf("expected all mass to end in the largest cell, got %.2f", big.Mass)
	}
}

func TestVirusShattersLargeCell(t *testing.T) {
	e, _ := newTestEngine(t)
	v := e.addVirus(V(1000, 1000), 100)
	e.addCell("p1", V(1000, 1000), 160)

	e.Tick(1.0 / 30)

	cells := e.OwnerCells("p1")
	if len(cells) != 7 {
		t.Fatalf("expected 7 pieces, got %d", len(cells))
	}
	total := 0.0
	for _, p := range cells {
		total += p.Mass
		if !approx(p.Mass, 160.0/7) {
			t.Errorf("piece mass %.3f, want %.3f", p.Mass, 160.0/7)
		}
		if !p.MergeAt.Equal(e.now().Add(15 * time.Second)) {
			t.Errorf("piece merge time not set: %v", p.MergeAt)
		}
	}
	if !approx(total, 160) {
		t.Errorf("shatter must conserve mass, got %.3f", total)
	}
	if _, ok := e.viruses[v.ID]; !ok {
		t.Error("virus survives a shatter")
	}
}

func TestVirusIgnoresSmallCell(t *testing.T) {
	e, _ := newTestEngine(t)
	e.addVirus(V(1000, 1000), 100)
	c := e.addCell("p1", V(1000, 1000), 140)

	e.Tick(1.0 / 30)

	if e.CellCount("p1") != 1 || c.Mass != 140 {
		t.Error("cell under the threshold must be unaffected by a virus")
	}
}

func TestShatterPiecesBounds(t *testing.T) {
	cfg := DefaultConfig(2000)
	cases := []struct {
		mass float64
		room int
		want int
	}{
		{39, 15, 0},
		{40, 15, 2},
		{160, 15, 7},
		{1000, 15, 7},
		{160, 2, 3},
		{160, 0, 0},
	}
	for _, tc := range cases {
		if got := shatterPieces(tc.mass, &cfg, tc.room); got != tc.want {
			t.Errorf("shatterPieces(%v, room %d) = %d, want %d", tc.mass, tc.room, got, tc.want)
		}
	}
}

func TestEjectedFeedsAndSplitsVirus(t *testing.T) {
	e, clock := newTestEngine(t)
	e.addVirus(V(1000, 1000), 195)
	e.addEjected(V(1000, 1000), V(0, 0), 10, clock.Now())

	e.Tick(1.0 / 30)

	s := e.Snapshot()
	if len(s.Ejected) != 0 {
		t.Error("ejected mass should be absorbed by the virus")
	}
	if n := len(s.Viruses); n < 2 || n > 3 {
		t.Fatalf("virus should split into 2 or 3, got %d", n)
	}
	total := 0.0
	for _, v := range s.Viruses {
		total += v.Mass
		if math.Abs(v.Mass-s.Viruses[0].Mass) > 1e-9 {
			t.Error("split viruses should have equal mass")
		}
		if d := Distance(v.Pos, V(1000, 1000)); d > 1e-6 && !approx(d, 50) {
			t.Errorf("split virus at offset %.2f, want 50", d)
		}
	}
	if !approx(total, 205) {
		t.Errorf("virus split must conserve mass, got %.2f", total)
	}
}

func TestCellAbsorbsEjected(t *testing.T) {
	e, clock := newTestEngine(t)
	c := e.addCell("p1", V(700, 700), 50)
	ej := e.addEjected(V(705, 700), V(0, 0), 4, clock.Now())

	e.Tick(1.0 / 30)

	if _, ok := e.ejected[ej.ID]; ok {
		t.Error("touching ejected mass should be absorbed")
	}
	if !approx(c.Mass, 54) {
		t.Errorf("expected mass 54, got %.2f", c.Mass)
	}
}

func TestMergeSameOwner(t *testing.T) {
	e, _ := newTestEngine(t)
	a := e.addCell("p1", V(800, 800), 30)
	b := e.addCell("p1", V(805, 800), 20)

	e.Tick(1.0 / 30)

	if e.CellCount("p1") != 1 {
		t.Fatalf("cells should merge, have %d", e.CellCount("p1"))
	}
	if _, ok := e.cells[b.ID]; ok {
		t.Error("smaller cell should be absorbed")
	}
	if !approx(a.Mass, 50) {
		t.Errorf("merge must conserve mass, got %.2f", a.Mass)
	}
}

func TestMergeWaitsForEligibility(t *testing.T) {
	e, clock := newTestEngine(t)
	a := e.addCell("p1", V(800, 800), 30)
	b := e.addCell("p1", V(805, 800), 20)
	a.MergeAt = clock.Now().Add(15 * time.Second)
	b.MergeAt = a.MergeAt

	e.Tick(1.0 / 30)
	if e.CellCount("p1") != 2 {
		t.Fatal("cells must not merge before both are eligible")
	}

	clock.Advance(15 * time.Second)
	e.Tick(1.0 / 30)
	if e.CellCount("p1") != 1 {
		t.Error("cells should merge once eligible")
	}
}

func TestMergeNeverAcrossOwners(t *testing.T) {
	e, _ := newTestEngine(t)
	e.addCell("p1", V(800, 800), 30)
	e.addCell("p2", V(812, 800), 28) // overlapping but not edible

	e.Tick(1.0 / 30)
	if e.CellCount("p1") != 1 || e.CellCount("p2") != 1 {
		t.Error("cells of different owners must never merge")
	}
}
