package game

import (
	"math"
	"slices"
)

// Split halves every eligible cell of the owner, launching the new half along
// the cell's steering direction. Returns true if any cell split.
func (e *Engine) Split(owner string) bool {
	if _, ok := e.owners[owner]; !ok {
		return false
	}
	now := e.now()
	count := e.CellCount(owner)
	split := false
	for _, c := range e.ownerCellPtrs(owner) {
		if count >= e.cfg.MaxCells {
			break
		}
		if c.Mass < e.cfg.MinSplitMass || now.Sub(c.SplitAt) < e.cfg.SplitCooldown {
			continue
		}
		dir := c.Target
		if IsZero(dir) {
			dir = V(1, 0)
		}
		half := c.Mass / 2
		c.Mass = half
		c.SplitAt = now
		c.MergeAt = now.Add(e.cfg.MergeTime)

		n := e.addCell(owner, c.Pos.Add(dir.Mul(c.Radius()+math.Sqrt(half))), half)
		n.Vel = dir.Mul(e.cfg.SplitSpeed)
		n.Target = c.Target
		n.SplitAt = now
		n.MergeAt = c.MergeAt
		count++
		split = true
	}
	return split
}

// Eject sheds mass from every eligible cell of the owner as drifting ejected mass.
// Returns true if anything was ejected.
func (e *Engine) Eject(owner string) bool {
	if _, ok := e.owners[owner]; !ok {
		return false
	}
	now := e.now()
	ejected := false
	for _, c := range e.ownerCellPtrs(owner) {
		if c.Mass < e.cfg.MinEjectMass || now.Sub(c.EjectAt) < e.cfg.EjectCooldown {
			continue
		}
		dir := c.Target
		if IsZero(dir) {
			dir = V(1, 0)
		}
		amount := min(c.Mass*e.cfg.EjectFraction, e.cfg.EjectMax)
		c.Mass -= amount
		c.EjectAt = now
		pos := c.Pos.Add(dir.Mul(c.Radius() + e.cfg.EjectDistance))
		e.addEjected(ClampVec(pos, 0, e.cfg.WorldSize), dir.Mul(e.cfg.EjectSpeed), amount, now)
		ejected = true
	}
	return ejected
}

// ownerCellPtrs returns the owner's live cells in id order
func (e *Engine) ownerCellPtrs(owner string) []*Cell {
	ids := append([]EntityID(nil), e.owners[owner]...)
	slices.Sort(ids)
	out := make([]*Cell, 0, len(ids))
	for _, id := range ids {
		if c, ok := e.cells[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
