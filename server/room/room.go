package room

import (
	"errors"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/game"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomClosed     = errors.New("room is not accepting players")
	ErrUnknownMode    = errors.New("unknown game mode")
	ErrTooManyRooms   = errors.New("room limit reached")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNoRespawn      = errors.New("respawn is disabled in this mode")
	ErrPlayerAlive    = errors.New("player is still alive")
)

// maxDT caps a single integration step so a stalled room does not teleport cells
const maxDT = 0.25

// State is a room's lifecycle stage
type State int

const (
	StateCreated State = iota
	StateActive
	StateEnding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// PlayerState is the room's record of one member
type PlayerState struct {
	PlayerID       string
	Name           string
	Team           int
	JoinTime       time.Time
	LastActivity   time.Time
	ProtectedUntil time.Time
	Alive          bool
	Kills          int
}

// Info is the public summary of a room
type Info struct {
	ID          string    `json:"room_id"`
	Mode        Mode      `json:"mode"`
	PlayerCount int       `json:"player_count"`
	MaxPlayers  int       `json:"max_players"`
	IsPrivate   bool      `json:"is_private"`
	IsActive    bool      `json:"is_active"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// Room is one isolated arena. All access goes through the room's mutex.
type Room struct {
	ID      string
	Config  ModeConfig
	Private bool
	Code    string

	mu          sync.Mutex
	engine      *game.Engine
	clock       time.Time
	players     map[string]*PlayerState
	spectators  map[string]struct{}
	createdAt   time.Time
	lastTickAt  time.Time
	emptySince  time.Time
	endedAt     time.Time
	state       State
	tickCount   uint64
	leaderboard []protocol.LeaderboardEntry
	killFeed    *KillFeed
	winners     []protocol.LeaderboardEntry
	panics      int
}

// tickOutcome is everything a tick produced that has to leave the room
type tickOutcome struct {
	Frame       StateFrame
	Kills       []KillEntry
	Eliminated  []string
	Leaderboard []protocol.LeaderboardEntry // nil unless due this tick
	MatchEnded  bool
	Winners     []protocol.LeaderboardEntry
}

func newRoom(id string, cfg ModeConfig, private bool, code string, now time.Time, opts ...game.Option) *Room {
	r := &Room{
		ID:         id,
		Config:     cfg,
		Private:    private,
		Code:       code,
		clock:      now,
		players:    make(map[string]*PlayerState),
		spectators: make(map[string]struct{}),
		createdAt:  now,
		lastTickAt: now,
		emptySince: now,
		state:      StateCreated,
		killFeed:   newKillFeed(killFeedSize),
	}
	opts = append([]game.Option{game.WithClock(func() time.Time { return r.clock })}, opts...)
	r.engine = game.NewEngine(cfg.EngineConfig(), opts...)
	return r
}

// advance moves the room clock forward; it never goes back
func (r *Room) advance(now time.Time) {
	if now.After(r.clock) {
		r.clock = now
	}
}

func (r *Room) joinable() bool {
	return r.state == StateCreated || r.state == StateActive
}

func (r *Room) addPlayer(playerID, name string, now time.Time) (PlayerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(now)

	if !r.joinable() {
		return PlayerState{}, ErrRoomClosed
	}
	if p, ok := r.players[playerID]; ok {
		return *p, nil
	}
	if len(r.players) >= r.Config.MaxPlayers {
		return PlayerState{}, ErrRoomFull
	}

	p := &PlayerState{
		PlayerID:       playerID,
		Name:           name,
		JoinTime:       r.clock,
		LastActivity:   r.clock,
		ProtectedUntil: r.clock.Add(r.Config.SpawnProtection),
		Alive:          true,
	}
	if r.Config.TeamMode {
		p.Team = assignTeam(r.players)
		r.engine.SetTeam(playerID, p.Team)
	}
	r.players[playerID] = p
	r.engine.SpawnPlayer(playerID)
	return *p, nil
}

func (r *Room) removePlayer(playerID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(now)

	if _, ok := r.players[playerID]; !ok {
		return false
	}
	delete(r.players, playerID)
	delete(r.spectators, playerID)
	r.engine.RemovePlayer(playerID)
	if len(r.players) == 0 {
		r.emptySince = r.clock
	}
	return true
}

func (r *Room) respawn(playerID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(now)

	p, ok := r.players[playerID]
	switch {
	case !ok:
		return ErrPlayerNotFound
	case r.Config.NoRespawn:
		return ErrNoRespawn
	case p.Alive:
		return ErrPlayerAlive
	case !r.joinable():
		return ErrRoomClosed
	}
	r.engine.SpawnPlayer(playerID)
	p.Alive = true
	p.ProtectedUntil = r.clock.Add(r.Config.SpawnProtection)
	p.LastActivity = r.clock
	delete(r.spectators, playerID)
	return nil
}

func (r *Room) input(playerID string, dir game.Vec2, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(now)

	p, ok := r.players[playerID]
	if !ok {
		return false
	}
	p.LastActivity = r.clock
	return r.engine.SetDirection(playerID, dir)
}

func (r *Room) action(playerID string, kind protocol.ActionKind, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(now)

	p, ok := r.players[playerID]
	if !ok || !p.Alive {
		return false
	}
	p.LastActivity = r.clock
	switch kind {
	case protocol.ActionSplit:
		return r.engine.Split(playerID)
	case protocol.ActionEject:
		return r.engine.Eject(playerID)
	}
	return false
}

func (r *Room) player(playerID string) (PlayerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return PlayerState{}, false
	}
	return *p, true
}

// tick advances the simulation to now. ok is false when the room is not ticking.
func (r *Room) tick(now time.Time, leaderboardEvery uint64) (out tickOutcome, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateCreated && r.state != StateActive {
		return out, false
	}
	r.state = StateActive

	dt := 0.0
	if now.After(r.lastTickAt) {
		dt = math.Min(now.Sub(r.lastTickAt).Seconds(), maxDT)
		r.lastTickAt = now
	}
	r.advance(now)

	res := r.engine.Tick(dt)
	r.tickCount++

	for _, pr := range res.Predations {
		e := KillEntry{
			Killer:     r.displayName(pr.Eater),
			Victim:     r.displayName(pr.Victim),
			KillerMass: pr.EaterMass,
			At:         r.clock,
		}
		if p, ok := r.players[pr.Eater]; ok {
			p.Kills++
		}
		r.killFeed.Add(e)
		out.Kills = append(out.Kills, e)
	}
	out.Eliminated = r.settleEliminations()

	r.leaderboard = r.rank(leaderboardSize)
	if leaderboardEvery > 0 && r.tickCount%leaderboardEvery == 0 {
		out.Leaderboard = r.leaderboard
	}

	if d := r.Config.MatchDuration; d > 0 && r.clock.Sub(r.createdAt) >= d {
		r.state = StateEnding
		r.endedAt = r.clock
		r.winners = r.rank(3)
		out.MatchEnded = true
		out.Winners = r.winners
	}

	out.Frame = r.frame()
	return out, true
}

// settleEliminations handles every living player left without cells.
// Players still under spawn protection are put back on the board instead.
func (r *Room) settleEliminations() []string {
	var out []string
	for _, id := range sortedKeys(r.players) {
		p := r.players[id]
		if !p.Alive || r.engine.HasPlayer(id) {
			continue
		}
		if r.clock.Before(p.ProtectedUntil) {
			r.engine.SpawnPlayer(id)
			continue
		}
		p.Alive = false
		r.spectators[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (r *Room) displayName(playerID string) string {
	if p, ok := r.players[playerID]; ok && p.Name != "" {
		return p.Name
	}
	return playerID
}

func (r *Room) rank(n int) []protocol.LeaderboardEntry {
	in := make([]standing, 0, len(r.players))
	for id, p := range r.players {
		if !p.Alive {
			continue
		}
		in = append(in, standing{id: id, name: p.Name, mass: r.engine.PlayerMass(id), kills: p.Kills})
	}
	return rankStandings(in, n)
}

func (r *Room) frame() StateFrame {
	ws := r.Config.WorldSize
	f := StateFrame{
		RoomID:       r.ID,
		Tick:         r.tickCount,
		Snapshot:     toWire(r.engine.Snapshot()),
		Focus:        make(map[string]protocol.Point, len(r.players)),
		DefaultFocus: protocol.Point{X: ws / 2, Y: ws / 2},
	}
	for id := range r.players {
		if pos, ok := r.engine.Focus(id); ok {
			f.Focus[id] = protocol.Point{X: pos.X(), Y: pos.Y()}
		}
	}
	return f
}

// snapshot builds a frame outside the tick, for clients that just joined
func (r *Room) snapshot() StateFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame()
}

// end moves the room straight to ending, used when its tick keeps failing
func (r *Room) end(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(now)
	if r.state == StateEnding || r.state == StateClosed {
		return
	}
	r.state = StateEnding
	r.endedAt = r.clock
}

func (r *Room) notePanic() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics++
	return r.panics
}

func (r *Room) clearPanics() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = 0
}

// shouldClose reports whether the room is due for removal
func (r *Room) shouldClose(now time.Time, emptyGrace, linger time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.state == StateClosed:
		return true
	case r.state == StateEnding:
		return now.Sub(r.endedAt) >= linger
	case len(r.players) == 0:
		return now.Sub(r.emptySince) >= emptyGrace
	}
	return false
}

func (r *Room) close() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateClosed
	ids := sortedKeys(r.players)
	for _, id := range ids {
		r.engine.RemovePlayer(id)
	}
	clear(r.players)
	clear(r.spectators)
	return ids
}

func (r *Room) info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		ID:          r.ID,
		Mode:        r.Config.Mode,
		PlayerCount: len(r.players),
		MaxPlayers:  r.Config.MaxPlayers,
		IsPrivate:   r.Private,
		IsActive:    r.joinable(),
		State:       r.state.String(),
		CreatedAt:   r.createdAt,
	}
}

// State returns the lifecycle stage
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PlayerCount returns the number of members, spectators included
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Leaderboard returns the standings computed at the last tick
func (r *Room) Leaderboard() []protocol.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.LeaderboardEntry(nil), r.leaderboard...)
}

// Winners returns the top three captured when the match ended
func (r *Room) Winners() []protocol.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.LeaderboardEntry(nil), r.winners...)
}

// KillFeed returns the recent kills, oldest first
func (r *Room) KillFeed() []KillEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.killFeed.Entries()
}

// Spectating reports whether the player was eliminated and is watching
func (r *Room) Spectating(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.spectators[playerID]
	return ok
}

func toWire(s game.Snapshot) protocol.Snapshot {
	out := protocol.Snapshot{
		Cells:   make([]protocol.CellState, len(s.Cells)),
		Food:    make([]protocol.FoodState, len(s.Food)),
		Viruses: make([]protocol.VirusState, len(s.Viruses)),
		Ejected: make([]protocol.EjectedState, len(s.Ejected)),
	}
	for i, c := range s.Cells {
		out.Cells[i] = protocol.CellState{
			ID:      uint32(c.ID),
			OwnerID: c.Owner,
			X:       round1(c.Pos.X()),
			Y:       round1(c.Pos.Y()),
			Radius:  round1(c.Radius()),
			Mass:    round1(c.Mass),
		}
	}
	for i, f := range s.Food {
		out.Food[i] = protocol.FoodState{
			ID:     uint32(f.ID),
			X:      round1(f.Pos.X()),
			Y:      round1(f.Pos.Y()),
			Radius: f.Radius,
			Value:  round1(f.Value),
		}
	}
	for i, v := range s.Viruses {
		out.Viruses[i] = protocol.VirusState{
			ID:     uint32(v.ID),
			X:      round1(v.Pos.X()),
			Y:      round1(v.Pos.Y()),
			Radius: round1(v.Radius()),
		}
	}
	for i, e := range s.Ejected {
		out.Ejected[i] = protocol.EjectedState{
			ID:     uint32(e.ID),
			X:      round1(e.Pos.X()),
			Y:      round1(e.Pos.Y()),
			Radius: round1(e.Radius()),
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
