package protocol

import "slices"

// baseline is the last state of one category sent to a client
type baseline[T Entity] map[uint32]T

// diff compares cur against the baseline and returns the changes plus the new baseline
func diff[T Entity](prev baseline[T], cur []T) (Delta[T], baseline[T]) {
	d := Delta[T]{Added: []T{}, Updated: []T{}, Removed: []uint32{}}
	next := make(baseline[T], len(cur))
	for _, e := range cur {
		id := e.EntityID()
		next[id] = e
		old, ok := prev[id]
		switch {
		case !ok:
			d.Added = append(d.Added, e)
		case old != e:
			d.Updated = append(d.Updated, e)
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	slices.Sort(d.Removed)
	return d, next
}

func seed[T Entity](cur []T) baseline[T] {
	b := make(baseline[T], len(cur))
	for _, e := range cur {
		b[e.EntityID()] = e
	}
	return b
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// DeltaEncoder holds the last snapshot sent to one client. The first frame after
// construction or Reset is a full snapshot; later frames are deltas against it.
// Not safe for concurrent use.
type DeltaEncoder struct {
	seeded  bool
	cells   baseline[CellState]
	food    baseline[FoodState]
	viruses baseline[VirusState]
	ejected baseline[EjectedState]
}

// Reset forgets the baseline so the next frame is full
func (d *DeltaEncoder) Reset() {
	*d = DeltaEncoder{}
}

// Encode returns the state message for s and makes s the new baseline
func (d *DeltaEncoder) Encode(s Snapshot) ServerMessage {
	if !d.seeded {
		d.seeded = true
		d.cells = seed(s.Cells)
		d.food = seed(s.Food)
		d.viruses = seed(s.Viruses)
		d.ejected = seed(s.Ejected)
		return &StateFull{
			Cells:   orEmpty(s.Cells),
			Food:    orEmpty(s.Food),
			Viruses: orEmpty(s.Viruses),
			Ejected: orEmpty(s.Ejected),
		}
	}
	msg := &StateDelta{IsDelta: true}
	msg.Cells, d.cells = diff(d.cells, s.Cells)
	msg.Food, d.food = diff(d.food, s.Food)
	msg.Viruses, d.viruses = diff(d.viruses, s.Viruses)
	msg.Ejected, d.ejected = diff(d.ejected, s.Ejected)
	return msg
}

// Mirror rebuilds the server's view from a stream of state messages.
// Headless clients use it to track the world.
type Mirror struct {
	cells   baseline[CellState]
	food    baseline[FoodState]
	viruses baseline[VirusState]
	ejected baseline[EjectedState]
}

// Apply folds one state message into the mirror. Deltas before any full frame are ignored.
func (m *Mirror) Apply(msg ServerMessage) bool {
	switch s := msg.(type) {
	case *StateFull:
		m.cells = seed(s.Cells)
		m.food = seed(s.Food)
		m.viruses = seed(s.Viruses)
		m.ejected = seed(s.Ejected)
		return true
	case *StateDelta:
		if m.cells == nil {
			return false
		}
		patch(m.cells, s.Cells)
		patch(m.food, s.Food)
		patch(m.viruses, s.Viruses)
		patch(m.ejected, s.Ejected)
		return true
	}
	return false
}

func patch[T Entity](b baseline[T], d Delta[T]) {
	for _, id := range d.Removed {
		delete(b, id)
	}
	for _, e := range d.Added {
		b[e.EntityID()] = e
	}
	for _, e := range d.Updated {
		b[e.EntityID()] = e
	}
}

func sorted[T Entity](b baseline[T]) []T {
	out := make([]T, 0, len(b))
	for _, e := range b {
		out = append(out, e)
	}
	slices.SortFunc(out, func(x, y T) int { return int(int64(x.EntityID()) - int64(y.EntityID())) })
	return out
}

// Snapshot returns the mirrored entities, each category sorted by id
func (m *Mirror) Snapshot() Snapshot {
	return Snapshot{
		Cells:   sorted(m.cells),
		Food:    sorted(m.food),
		Viruses: sorted(m.viruses),
		Ejected: sorted(m.ejected),
	}
}

// Cells returns the mirrored cells owned by owner
func (m *Mirror) Cells(owner string) []CellState {
	var out []CellState
	for _, c := range sorted(m.cells) {
		if c.OwnerID == owner {
			out = append(out, c)
		}
	}
	return out
}
