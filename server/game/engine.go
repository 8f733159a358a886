package game

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"
)

// Predation records one cell eating a cell of another owner
type Predation struct {
	Eater      string
	Victim     string
	EaterMass  float64 // eater cell mass after absorbing
	VictimMass float64
}

// TickResult carries the events of one tick up to the room layer
type TickResult struct {
	Predations []Predation
	Eliminated []string // owners left with zero cells, sorted
}

// Snapshot is a consistent copy of every entity, each category sorted by id
type Snapshot struct {
	Cells   []Cell
	Food    []Food
	Viruses []Virus
	Ejected []Ejected
}

// Option customises an Engine
type Option func(*Engine)

// WithClock replaces the wall clock used for cooldowns and TTLs
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand replaces the random source used for spawning and scattering
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// Engine owns one arena's entities. It is not safe for concurrent use;
// the owning room serialises access.
type Engine struct {
	cfg  Config
	now  func() time.Time
	rng  *rand.Rand
	grid *SpatialGrid

	nextID  EntityID
	cells   map[EntityID]*Cell
	food    map[EntityID]*Food
	viruses map[EntityID]*Virus
	ejected map[EntityID]*Ejected
	owners  map[string][]EntityID
	teams   map[string]int

	// largest radii seen at the last grid rebuild, used to size neighbour queries
	maxCellR    float64
	maxVirusR   float64
	maxEjectedR float64

	ticks uint64
	buf   []EntityRef
}

// NewEngine creates an engine and seeds its initial food and viruses
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		now:     time.Now,
		cells:   make(map[EntityID]*Cell),
		food:    make(map[EntityID]*Food),
		viruses: make(map[EntityID]*Virus),
		ejected: make(map[EntityID]*Ejected),
		owners:  make(map[string][]EntityID),
		teams:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.grid = NewSpatialGrid(cfg.WorldSize, cfg.GridCellSize)

	for range cfg.FoodCount {
		e.spawnFood()
	}
	for range cfg.VirusCount {
		pos := V(e.randRange(cfg.BorderSize, cfg.WorldSize-cfg.BorderSize), e.randRange(cfg.BorderSize, cfg.WorldSize-cfg.BorderSize))
		e.addVirus(pos, e.randRange(cfg.VirusMinStartMass, cfg.VirusMaxStartMass))
	}
	return e
}

// Config returns the engine's tuning
func (e *Engine) Config() Config {
	return e.cfg
}

// Ticks returns how many ticks have run
func (e *Engine) Ticks() uint64 {
	return e.ticks
}

func (e *Engine) id() EntityID {
	e.nextID++
	return e.nextID
}

func (e *Engine) randRange(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

func (e *Engine) randomPosition(margin float64) Vec2 {
	return V(e.randRange(margin, e.cfg.WorldSize-margin), e.randRange(margin, e.cfg.WorldSize-margin))
}

// SpawnPlayer gives an owner with no cells a single starting cell at a random position.
// Returns false if the owner already has cells.
func (e *Engine) SpawnPlayer(owner string) (EntityID, bool) {
	if len(e.owners[owner]) > 0 {
		return 0, false
	}
	c := e.addCell(owner, e.randomPosition(e.cfg.BorderSize), e.cfg.StartMass)
	return c.ID, true
}

// PlaceCell adds a cell for the owner at an exact position, bypassing spawn rules
func (e *Engine) PlaceCell(owner string, pos Vec2, mass float64) EntityID {
	return e.addCell(owner, ClampVec(pos, 0, e.cfg.WorldSize), mass).ID
}

// RemovePlayer deletes every cell of the owner. Returns false for unknown owners.
func (e *Engine) RemovePlayer(owner string) bool {
	ids, ok := e.owners[owner]
	for _, id := range ids {
		delete(e.cells, id)
	}
	delete(e.owners, owner)
	delete(e.teams, owner)
	return ok
}

// SetTeam assigns an owner to a team; owners on the same non-zero team cannot eat each other
func (e *Engine) SetTeam(owner string, team int) {
	if team == 0 {
		delete(e.teams, owner)
		return
	}
	e.teams[owner] = team
}

func (e *Engine) sameTeam(a, b string) bool {
	ta, ok := e.teams[a]
	return ok && ta == e.teams[b]
}

// SetDirection steers every cell of the owner. The direction is normalised;
// a zero vector stops steering. Returns false for unknown owners.
func (e *Engine) SetDirection(owner string, dir Vec2) bool {
	ids, ok := e.owners[owner]
	if !ok {
		return false
	}
	if math.IsNaN(dir[0]) || math.IsNaN(dir[1]) || math.IsInf(dir[0], 0) || math.IsInf(dir[1], 0) {
		dir = Vec2{}
	}
	dir = Normalize(dir)
	for _, id := range ids {
		if c, ok := e.cells[id]; ok {
			c.Target = dir
		}
	}
	return true
}

// HasPlayer reports whether the owner currently has at least one cell
func (e *Engine) HasPlayer(owner string) bool {
	return len(e.owners[owner]) > 0
}

// CellCount returns how many live cells the owner has
func (e *Engine) CellCount(owner string) int {
	n := 0
	for _, id := range e.owners[owner] {
		if _, ok := e.cells[id]; ok {
			n++
		}
	}
	return n
}

// PlayerMass returns the owner's total cell mass
func (e *Engine) PlayerMass(owner string) float64 {
	total := 0.0
	for _, id := range e.owners[owner] {
		if c, ok := e.cells[id]; ok {
			total += c.Mass
		}
	}
	return total
}

// Focus returns the position of the owner's largest cell
func (e *Engine) Focus(owner string) (Vec2, bool) {
	var best *Cell
	for _, id := range e.owners[owner] {
		c, ok := e.cells[id]
		if !ok {
			continue
		}
		if best == nil || c.Mass > best.Mass || (c.Mass == best.Mass && c.ID < best.ID) {
			best = c
		}
	}
	if best == nil {
		return Vec2{}, false
	}
	return best.Pos, true
}

// OwnerCells returns copies of the owner's cells sorted by id
func (e *Engine) OwnerCells(owner string) []Cell {
	ids := slices.Clone(e.owners[owner])
	slices.Sort(ids)
	out := make([]Cell, 0, len(ids))
	for _, id := range ids {
		if c, ok := e.cells[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// Cell returns a copy of one cell
func (e *Engine) Cell(id EntityID) (Cell, bool) {
	c, ok := e.cells[id]
	if !ok {
		return Cell{}, false
	}
	return *c, true
}

// FoodCount returns the number of live food items
func (e *Engine) FoodCount() int {
	return len(e.food)
}

// Snapshot copies every entity for broadcasting
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Cells:   make([]Cell, 0, len(e.cells)),
		Food:    make([]Food, 0, len(e.food)),
		Viruses: make([]Virus, 0, len(e.viruses)),
		Ejected: make([]Ejected, 0, len(e.ejected)),
	}
	for _, c := range e.cells {
		s.Cells = append(s.Cells, *c)
	}
	for _, f := range e.food {
		s.Food = append(s.Food, *f)
	}
	for _, v := range e.viruses {
		s.Viruses = append(s.Viruses, *v)
	}
	for _, ej := range e.ejected {
		s.Ejected = append(s.Ejected, *ej)
	}
	slices.SortFunc(s.Cells, func(a, b Cell) int { return cmpID(a.ID, b.ID) })
	slices.SortFunc(s.Food, func(a, b Food) int { return cmpID(a.ID, b.ID) })
	slices.SortFunc(s.Viruses, func(a, b Virus) int { return cmpID(a.ID, b.ID) })
	slices.SortFunc(s.Ejected, func(a, b Ejected) int { return cmpID(a.ID, b.ID) })
	return s
}

func cmpID(a, b EntityID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Tick advances the simulation by dt seconds
func (e *Engine) Tick(dt float64) TickResult {
	now := e.now()
	var res TickResult

	e.rebuildGrid()
	e.moveCells(dt)
	e.moveEjected(dt, now)

	e.eatFood()
	e.resolvePredation(&res)
	e.resolveViruses(now)
	e.eatEjected()
	e.mergeCells(now)

	e.cleanup(&res)
	e.replenishFood()
	e.ticks++
	return res
}

func (e *Engine) rebuildGrid() {
	e.grid.Clear()
	e.maxCellR, e.maxVirusR, e.maxEjectedR = 0, 0, 0
	for id, c := range e.cells {
		e.grid.Insert(c.Pos, EntityRef{Kind: KindCell, ID: id})
		e.maxCellR = max(e.maxCellR, c.Radius())
	}
	for id, f := range e.food {
		e.grid.Insert(f.Pos, EntityRef{Kind: KindFood, ID: id})
	}
	for id, v := range e.viruses {
		e.grid.Insert(v.Pos, EntityRef{Kind: KindVirus, ID: id})
		e.maxVirusR = max(e.maxVirusR, v.Radius())
	}
	for id, ej := range e.ejected {
		e.grid.Insert(ej.Pos, EntityRef{Kind: KindEjected, ID: id})
		e.maxEjectedR = max(e.maxEjectedR, ej.Radius())
	}
}

func (e *Engine) moveCells(dt float64) {
	lo, hi := e.cfg.BorderSize, e.cfg.WorldSize-e.cfg.BorderSize
	for _, c := range e.cells {
		if !IsZero(c.Target) {
			target := c.Target.Mul(c.Speed(&e.cfg))
			c.Vel = c.Vel.Mul(1 - e.cfg.VelocityBlend).Add(target.Mul(e.cfg.VelocityBlend))
		}
		c.Vel = c.Vel.Mul(e.cfg.Friction)
		c.Pos = ClampVec(c.Pos.Add(c.Vel.Mul(dt)), lo, hi)
	}
}

func (e *Engine) moveEjected(dt float64, now time.Time) {
	for id, ej := range e.ejected {
		if now.Sub(ej.CreatedAt) > e.cfg.EjectedTTL {
			delete(e.ejected, id)
			continue
		}
		ej.Vel = ej.Vel.Mul(e.cfg.EjectedFriction)
		ej.Pos = ClampVec(ej.Pos.Add(ej.Vel.Mul(dt)), 0, e.cfg.WorldSize)
	}
}

// sortedCellIDs returns live cell ids in ascending order
func (e *Engine) sortedCellIDs() []EntityID {
	ids := make([]EntityID, 0, len(e.cells))
	for id := range e.cells {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// neighbours returns ids of the given kind near pos, ascending
func (e *Engine) neighbours(pos Vec2, radius float64, kind Kind) []EntityID {
	e.buf = e.grid.QueryBuf(pos, radius+e.cfg.QueryMargin, e.buf[:0])
	var out []EntityID
	for _, ref := range e.buf {
		if ref.Kind == kind {
			out = append(out, ref.ID)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (e *Engine) cleanup(res *TickResult) {
	for owner, ids := range e.owners {
		live := ids[:0]
		for _, id := range ids {
			if _, ok := e.cells[id]; ok {
				live = append(live, id)
			}
		}
		if len(live) == 0 {
			delete(e.owners, owner)
			res.Eliminated = append(res.Eliminated, owner)
			continue
		}
		e.owners[owner] = live
	}
	slices.Sort(res.Eliminated)
}

func (e *Engine) replenishFood() {
	missing := min(e.cfg.FoodCount-len(e.food), e.cfg.FoodSpawnCap)
	for range missing {
		e.spawnFood()
	}
}

func (e *Engine) spawnFood() *Food {
	f := &Food{
		ID:     e.id(),
		Pos:    e.randomPosition(0),
		Value:  e.randRange(e.cfg.FoodMinValue, e.cfg.FoodMaxValue),
		Radius: e.cfg.FoodRadius,
	}
	e.food[f.ID] = f
	return f
}

func (e *Engine) addCell(owner string, pos Vec2, mass float64) *Cell {
	c := &Cell{ID: e.id(), Owner: owner, Pos: pos, Mass: mass}
	e.cells[c.ID] = c
	e.owners[owner] = append(e.owners[owner], c.ID)
	e.grid.Insert(c.Pos, EntityRef{Kind: KindCell, ID: c.ID})
	e.maxCellR = max(e.maxCellR, c.Radius())
	return c
}

func (e *Engine) removeCell(c *Cell) {
	delete(e.cells, c.ID)
	ids := e.owners[c.Owner]
	if i := slices.Index(ids, c.ID); i >= 0 {
		e.owners[c.Owner] = slices.Delete(ids, i, i+1)
	}
}

func (e *Engine) addVirus(pos Vec2, mass float64) *Virus {
	v := &Virus{ID: e.id(), Pos: pos, Mass: mass}
	e.viruses[v.ID] = v
	e.grid.Insert(v.Pos, EntityRef{Kind: KindVirus, ID: v.ID})
	e.maxVirusR = max(e.maxVirusR, v.Radius())
	return v
}

func (e *Engine) addEjected(pos, vel Vec2, mass float64, now time.Time) *Ejected {
	ej := &Ejected{ID: e.id(), Pos: pos, Vel: vel, Mass: mass, CreatedAt: now}
	e.ejected[ej.ID] = ej
	e.grid.Insert(ej.Pos, EntityRef{Kind: KindEjected, ID: ej.ID})
	e.maxEjectedR = max(e.maxEjectedR, ej.Radius())
	return ej
}
