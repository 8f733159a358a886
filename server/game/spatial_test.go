package game

import "testing"

func contains(refs []EntityRef, want EntityRef) bool {
	for _, r := range refs {
		if r == want {
			return true
		}
	}
	return false
}

func TestSpatialGridInsertAndQuery(t *testing.T) {
	grid := NewSpatialGrid(2000, 100)

	ref := EntityRef{Kind: KindCell, ID: 1}
	grid.Insert(V(150, 150), ref)

	if !contains(grid.Query(V(150, 150), 10), ref) {
		t.Error("expected to find entity at (150,150)")
	}
	if !contains(grid.Query(V(260, 150), 10), ref) {
		t.Error("neighbouring bucket query should include (150,150)")
	}
	if contains(grid.Query(V(1500, 1500), 50), ref) {
		t.Error("should not find entity from (1500,1500)")
	}
}

func TestSpatialGridQuerySpan(t *testing.T) {
	grid := NewSpatialGrid(2000, 100)
	ref := EntityRef{Kind: KindFood, ID: 7}
	grid.Insert(V(550, 550), ref)

	// 300 units away needs ceil(300/100) = 3 buckets of span
	if !contains(grid.Query(V(250, 550), 300), ref) {
		t.Error("expected query radius 300 to reach 3 buckets away")
	}
	if contains(grid.Query(V(150, 550), 100), ref) {
		t.Error("radius 100 should not reach 4 buckets away")
	}
}

func TestSpatialGridClear(t *testing.T) {
	grid := NewSpatialGrid(2000, 100)
	grid.Insert(V(500, 500), EntityRef{Kind: KindVirus, ID: 3})
	grid.Clear()

	if n := len(grid.Query(V(500, 500), 100)); n != 0 {
		t.Errorf("expected 0 results after clear, got %d", n)
	}
	if grid.Len() != 0 {
		t.Errorf("expected empty grid, got %d refs", grid.Len())
	}
}

func TestSpatialGridBoundaryClamp(t *testing.T) {
	grid := NewSpatialGrid(2000, 100)

	low := EntityRef{Kind: KindCell, ID: 1}
	grid.Insert(V(-10, -10), low)
	if !contains(grid.Query(V(0, 0), 50), low) {
		t.Error("expected to find entity inserted at negative coords")
	}

	high := EntityRef{Kind: KindCell, ID: 2}
	grid.Insert(V(5000, 5000), high)
	if !contains(grid.Query(V(2000, 2000), 50), high) {
		t.Error("expected to find entity inserted beyond world edge")
	}
}
