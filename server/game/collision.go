package game

import (
	"math"
	"slices"
	"time"
)

func (e *Engine) eatFood() {
	for _, id := range e.sortedCellIDs() {
		c, ok := e.cells[id]
		if !ok {
			continue
		}
		for _, fid := range e.neighbours(c.Pos, c.Radius(), KindFood) {
			f, ok := e.food[fid]
			if !ok {
				continue
			}
			if Distance(c.Pos, f.Pos) < c.Radius()+f.Radius {
				c.Mass += f.Value
				delete(e.food, fid)
			}
		}
	}
}

// resolvePredation lets each cell, in id order, eat smaller cells of other owners.
// Eaten cells are removed immediately so they can neither eat nor be eaten again.
func (e *Engine) resolvePredation(res *TickResult) {
	for _, id := range e.sortedCellIDs() {
		c, ok := e.cells[id]
		if !ok {
			continue
		}
		for _, oid := range e.neighbours(c.Pos, c.Radius(), KindCell) {
			o, ok := e.cells[oid]
			if !ok || oid == id || o.Owner == c.Owner || e.sameTeam(c.Owner, o.Owner) {
				continue
			}
			if !canEat(c, o, &e.cfg) {
				continue
			}
			c.Mass += o.Mass
			e.removeCell(o)
			res.Predations = append(res.Predations, Predation{
				Eater:      c.Owner,
				Victim:     o.Owner,
				EaterMass:  c.Mass,
				VictimMass: o.Mass,
			})
		}
	}
}

// canEat applies both the geometric margin test and the mass ratio test
func canEat(eater, victim *Cell, cfg *Config) bool {
	if eater.Mass <= victim.Mass*cfg.EatRatio {
		return false
	}
	return Distance(eater.Pos, victim.Pos) < eater.Radius()-victim.Radius()*cfg.EatMargin
}

func (e *Engine) resolveViruses(now time.Time) {
	for _, id := range e.sortedCellIDs() {
		c, ok := e.cells[id]
		if !ok || c.Mass <= e.cfg.VirusSplitThreshold {
			continue
		}
		for _, vid := range e.neighbours(c.Pos, c.Radius()+e.maxVirusR, KindVirus) {
			v, ok := e.viruses[vid]
			if !ok {
				continue
			}
			if Distance(c.Pos, v.Pos) < c.Radius()+v.Radius() {
				e.shatter(c, v, now)
				break
			}
		}
	}

	for _, eid := range sortedKeys(e.ejected) {
		ej, ok := e.ejected[eid]
		if !ok {
			continue
		}
		for _, vid := range e.neighbours(ej.Pos, ej.Radius()+e.maxVirusR, KindVirus) {
			v, ok := e.viruses[vid]
			if !ok {
				continue
			}
			if Distance(ej.Pos, v.Pos) < ej.Radius()+v.Radius() {
				v.Mass += ej.Mass
				delete(e.ejected, eid)
				if v.Mass > e.cfg.VirusMaxMass {
					e.splitVirus(v)
				}
				break
			}
		}
	}
}

// shatterPieces returns how many pieces a cell of this mass breaks into on a virus,
// or 0 if it does not break
func shatterPieces(mass float64, cfg *Config, room int) int {
	pieces := min(cfg.MaxVirusPieces, int(math.Floor(mass/cfg.VirusPieceMass)))
	pieces = min(pieces, room+1)
	if pieces < 2 {
		return 0
	}
	return pieces
}

// shatter splits c into equal pieces scattered around v. The owner's cell cap
// limits the piece count; if fewer than two pieces fit, nothing happens.
func (e *Engine) shatter(c *Cell, v *Virus, now time.Time) bool {
	room := e.cfg.MaxCells - e.CellCount(c.Owner)
	pieces := shatterPieces(c.Mass, &e.cfg, room)
	if pieces == 0 {
		return false
	}
	pm := c.Mass / float64(pieces)
	c.Mass = pm
	c.MergeAt = now.Add(e.cfg.MergeTime)
	for range pieces - 1 {
		dir := FromAngle(e.rng.Float64() * 2 * math.Pi)
		gap := v.Radius() + math.Sqrt(pm) + e.randRange(e.cfg.VirusPieceMinGap, e.cfg.VirusPieceMaxGap)
		n := e.addCell(c.Owner, v.Pos.Add(dir.Mul(gap)), pm)
		n.Vel = dir.Mul(e.cfg.VirusPieceSpeed)
		n.Target = c.Target
		n.MergeAt = c.MergeAt
	}
	return true
}

// splitVirus breaks v into 2 or 3 equal viruses at a fixed offset
func (e *Engine) splitVirus(v *Virus) {
	n := 2 + e.rng.IntN(2)
	each := v.Mass / float64(n)
	v.Mass = each
	for range n - 1 {
		pos := v.Pos.Add(FromAngle(e.rng.Float64() * 2 * math.Pi).Mul(e.cfg.VirusSplitOffset))
		e.addVirus(ClampVec(pos, 0, e.cfg.WorldSize), each)
	}
}

func (e *Engine) eatEjected() {
	for _, id := range e.sortedCellIDs() {
		c, ok := e.cells[id]
		if !ok {
			continue
		}
		for _, eid := range e.neighbours(c.Pos, c.Radius()+e.maxEjectedR, KindEjected) {
			ej, ok := e.ejected[eid]
			if !ok {
				continue
			}
			if Distance(c.Pos, ej.Pos) < c.Radius()+ej.Radius() {
				c.Mass += ej.Mass
				delete(e.ejected, eid)
			}
		}
	}
}

// mergeCells joins overlapping cells of the same owner once both are eligible.
// The heavier cell (lower id on ties) absorbs the other.
func (e *Engine) mergeCells(now time.Time) {
	for _, id := range e.sortedCellIDs() {
		c, ok := e.cells[id]
		if !ok || now.Before(c.MergeAt) {
			continue
		}
		for _, oid := range e.neighbours(c.Pos, c.Radius()+e.maxCellR, KindCell) {
			o, ok := e.cells[oid]
			if !ok || oid == id || o.Owner != c.Owner || now.Before(o.MergeAt) {
				continue
			}
			if Distance(c.Pos, o.Pos) >= c.Radius()+o.Radius() {
				continue
			}
			big, small := c, o
			if o.Mass > c.Mass {
				big, small = o, c
			}
			big.Mass += small.Mass
			e.removeCell(small)
			if small == c {
				break
			}
		}
	}
}

func sortedKeys[V any](m map[EntityID]V) []EntityID {
	ids := make([]EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
