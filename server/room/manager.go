package room

import (
	"cmp"
	"context"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/game"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
)

const (
	DefaultTickRate         = 30
	DefaultMaxRooms         = 100
	DefaultEmptyGrace       = 300 * time.Second
	DefaultResultLinger     = 10 * time.Second
	DefaultLeaderboardEvery = 60

	// rooms whose tick fails this many times in a row are ended
	maxTickPanics = 3
	// weight of the newest sample in the tick time average
	tickAvgAlpha = 0.05

	recordTimeout = 5 * time.Second
)

// Options configures a Manager. Zero values pick the defaults.
type Options struct {
	TickRate         int
	MaxRooms         int
	EmptyGrace       time.Duration
	ResultLinger     time.Duration
	LeaderboardEvery uint64

	Publisher     Publisher
	Recorder      MatchRecorder
	Tracker       EventTracker
	Logger        *slog.Logger
	MeterProvider metric.MeterProvider
	Clock         func() time.Time

	// EngineOptions are applied to every room's engine, after the room clock
	EngineOptions []game.Option
}

// Stats is a point-in-time view of the whole server
type Stats struct {
	TotalRooms   int          `json:"total_rooms"`
	ActiveRooms  int          `json:"active_rooms"`
	TotalPlayers int          `json:"total_players"`
	RoomsByMode  map[Mode]int `json:"rooms_by_mode"`
	AvgTickMS    float64      `json:"avg_tick_ms"`
	TickRate     int          `json:"tick_rate"`
}

// Manager owns every room, routes player operations to them and drives
// the fixed-rate tick loop.
type Manager struct {
	opts    Options
	log     *slog.Logger
	pub     Publisher
	tracker EventTracker
	metrics *metrics

	mu          sync.RWMutex
	rooms       map[string]*Room
	codes       map[string]string // private code -> room id
	playerRooms map[string]string // player id -> room id

	statsMu sync.Mutex
	avgTick float64 // seconds
}

// NewManager creates a Manager
func NewManager(opts Options) *Manager {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	if opts.MaxRooms <= 0 {
		opts.MaxRooms = DefaultMaxRooms
	}
	if opts.EmptyGrace <= 0 {
		opts.EmptyGrace = DefaultEmptyGrace
	}
	if opts.ResultLinger <= 0 {
		opts.ResultLinger = DefaultResultLinger
	}
	if opts.LeaderboardEvery == 0 {
		opts.LeaderboardEvery = DefaultLeaderboardEvery
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	m := &Manager{
		opts:        opts,
		log:         opts.Logger,
		pub:         opts.Publisher,
		tracker:     opts.Tracker,
		metrics:     newMetrics(opts.MeterProvider),
		rooms:       make(map[string]*Room),
		codes:       make(map[string]string),
		playerRooms: make(map[string]string),
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.pub == nil {
		m.pub = nopPublisher{}
	}
	if m.tracker == nil {
		m.tracker = nopTracker{}
	}
	return m
}

func (m *Manager) now() time.Time {
	return m.opts.Clock()
}

func (m *Manager) track(typ, roomID, playerID string, data map[string]any) {
	m.tracker.Track(Event{Type: typ, RoomID: roomID, PlayerID: playerID, Data: data, At: m.now()})
}

// CreateRoom opens a new room of the given mode. Private rooms get a join code.
func (m *Manager) CreateRoom(mode string, private bool) (string, error) {
	md, err := ParseMode(mode)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.createLocked(md, private)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (m *Manager) createLocked(mode Mode, private bool) (*Room, error) {
	cfg, err := DefaultConfig(mode)
	if err != nil {
		return nil, err
	}
	if len(m.rooms) >= m.opts.MaxRooms {
		return nil, ErrTooManyRooms
	}
	code := ""
	if private {
		code = newCode(func(c string) bool { _, ok := m.codes[c]; return ok })
	}
	r := newRoom(uuid.NewString(), cfg, private, code, m.now(), m.opts.EngineOptions...)
	m.rooms[r.ID] = r
	if code != "" {
		m.codes[code] = r.ID
	}
	m.metrics.roomOpened(mode)
	m.log.Info("room created", "room", r.ID, "mode", mode, "private", private)
	m.track(EventRoomCreated, r.ID, "", map[string]any{"mode": string(mode), "private": private})
	return r, nil
}

// FindOrCreateRoom returns the fullest public room of the mode that still has
// space, creating one if none does.
func (m *Manager) FindOrCreateRoom(mode string) (string, error) {
	md, err := ParseMode(mode)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Room
	bestCount := -1
	for _, r := range m.sortedRoomsLocked() {
		if r.Private || r.Config.Mode != md {
			continue
		}
		info := r.info()
		if !info.IsActive || info.PlayerCount >= info.MaxPlayers {
			continue
		}
		if info.PlayerCount > bestCount {
			best, bestCount = r, info.PlayerCount
		}
	}
	if best != nil {
		return best.ID, nil
	}
	r, err := m.createLocked(md, false)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// JoinRoomByCode resolves a private code to a joinable room
func (m *Manager) JoinRoomByCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	m.mu.RLock()
	id, ok := m.codes[code]
	r := m.rooms[id]
	m.mu.RUnlock()
	if !ok || r == nil {
		return "", ErrRoomNotFound
	}
	info := r.info()
	if !info.IsActive {
		return "", ErrRoomClosed
	}
	if info.PlayerCount >= info.MaxPlayers {
		return "", ErrRoomFull
	}
	return id, nil
}

// AddPlayer seats a player in a room and sends them the init message.
// A player already seated elsewhere is moved.
func (m *Manager) AddPlayer(roomID, playerID, name string) error {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return ErrRoomNotFound
	}
	prev, had := m.playerRooms[playerID]
	moved := had && prev != roomID
	// seat in the new room first so a refused move leaves the player where they were
	p, err := r.addPlayer(playerID, name, m.now())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	var left *Room
	if moved {
		if old, ok := m.rooms[prev]; ok && old.removePlayer(playerID, m.now()) {
			left = old
		}
	}
	m.playerRooms[playerID] = roomID
	m.mu.Unlock()

	if left != nil {
		m.metrics.playerLeft(left.Config.Mode, 1)
		m.log.Info("player left", "room", prev, "player", playerID)
		m.track(EventPlayerLeft, prev, playerID, nil)
	}
	if !had || moved {
		m.metrics.playerJoined(r.Config.Mode)
		m.log.Info("player joined", "room", roomID, "player", playerID, "name", name)
		m.track(EventPlayerJoined, roomID, playerID, map[string]any{"name": name, "team": p.Team})
	}

	m.pub.SendTo(playerID, &protocol.Init{
		PlayerID:  playerID,
		WorldSize: r.Config.WorldSize,
		Config: protocol.InitConfig{
			RoomID:        r.ID,
			Mode:          string(r.Config.Mode),
			MaxPlayers:    r.Config.MaxPlayers,
			PrivateCode:   r.Code,
			MatchDuration: r.Config.MatchDuration.Seconds(),
			Team:          p.Team,
		},
	})
	return nil
}

// RemovePlayer takes a player out of whatever room they are in
func (m *Manager) RemovePlayer(playerID string) bool {
	m.mu.Lock()
	roomID, ok := m.playerRooms[playerID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.playerRooms, playerID)
	r := m.rooms[roomID]
	m.mu.Unlock()

	if r == nil || !r.removePlayer(playerID, m.now()) {
		return false
	}
	m.metrics.playerLeft(r.Config.Mode, 1)
	m.log.Info("player left", "room", roomID, "player", playerID)
	m.track(EventPlayerLeft, roomID, playerID, nil)
	return true
}

func (m *Manager) roomOf(playerID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.playerRooms[playerID]
	if !ok {
		return nil, false
	}
	r, ok := m.rooms[id]
	return r, ok
}

// PlayerRoom returns the id of the room a player is seated in
func (m *Manager) PlayerRoom(playerID string) (string, bool) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return "", false
	}
	return r.ID, true
}

// Player returns a copy of the player's room record
func (m *Manager) Player(playerID string) (PlayerState, bool) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return PlayerState{}, false
	}
	return r.player(playerID)
}

// HandleInput sets the player's steering direction
func (m *Manager) HandleInput(playerID string, dirX, dirY float64) bool {
	r, ok := m.roomOf(playerID)
	if !ok {
		return false
	}
	return r.input(playerID, game.V(dirX, dirY), m.now())
}

// HandleAction runs a split, eject or respawn for the player
func (m *Manager) HandleAction(playerID string, kind protocol.ActionKind) bool {
	r, ok := m.roomOf(playerID)
	if !ok {
		return false
	}
	if kind != protocol.ActionRespawn {
		return r.action(playerID, kind, m.now())
	}
	if err := r.respawn(playerID, m.now()); err != nil {
		m.log.Debug("respawn refused", "room", r.ID, "player", playerID, "err", err)
		return false
	}
	m.track(EventPlayerRespawn, r.ID, playerID, nil)
	return true
}

// HandleChat relays a chat line to the player's room
func (m *Manager) HandleChat(playerID, text string) bool {
	r, ok := m.roomOf(playerID)
	if !ok {
		return false
	}
	p, ok := r.player(playerID)
	if !ok {
		return false
	}
	from := p.Name
	if from == "" {
		from = playerID
	}
	m.pub.Broadcast(r.ID, &protocol.ChatBroadcast{From: from, Text: text})
	return true
}

// RoomInfo returns the public summary of one room
func (m *Manager) RoomInfo(roomID string) (Info, bool) {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return Info{}, false
	}
	return r.info(), true
}

// Room returns a room by id
func (m *Manager) Room(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// Snapshot returns the room's current world, used to prime a new client
func (m *Manager) Snapshot(roomID string) (StateFrame, bool) {
	r, ok := m.Room(roomID)
	if !ok {
		return StateFrame{}, false
	}
	return r.snapshot(), true
}

// ListPublicRooms lists joinable public rooms, oldest first
func (m *Manager) ListPublicRooms() []Info {
	m.mu.RLock()
	rooms := m.sortedRoomsLocked()
	m.mu.RUnlock()

	list := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		if r.Private {
			continue
		}
		if info := r.info(); info.IsActive {
			list = append(list, info)
		}
	}
	return list
}

// Stats summarises rooms, players and scheduler timing
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	rooms := m.sortedRoomsLocked()
	m.mu.RUnlock()

	s := Stats{RoomsByMode: make(map[Mode]int), TickRate: m.opts.TickRate}
	for _, r := range rooms {
		info := r.info()
		s.TotalRooms++
		if info.State == StateActive.String() {
			s.ActiveRooms++
		}
		s.TotalPlayers += info.PlayerCount
		s.RoomsByMode[info.Mode]++
	}
	m.statsMu.Lock()
	s.AvgTickMS = m.avgTick * 1000
	m.statsMu.Unlock()
	return s
}

func (m *Manager) sortedRoomsLocked() []*Room {
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	slices.SortFunc(rooms, func(a, b *Room) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return rooms
}

// Run ticks every room at the configured rate until ctx is done.
// An in-flight pass always completes before Run returns.
func (m *Manager) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(m.opts.TickRate)
	timer := time.NewTimer(0)
	defer timer.Stop()
	m.log.Info("scheduler started", "tick_rate", m.opts.TickRate)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
		start := time.Now()
		m.Step(m.now())
		timer.Reset(max(interval-time.Since(start), 0))
	}
}

// Step runs one scheduler pass: tick every room, then close the ones that are done
func (m *Manager) Step(now time.Time) {
	start := time.Now()

	m.mu.RLock()
	rooms := m.sortedRoomsLocked()
	m.mu.RUnlock()

	for _, r := range rooms {
		m.tickRoom(r, now)
	}
	m.cleanup(now)

	elapsed := time.Since(start)
	m.metrics.observeTick(elapsed)
	m.statsMu.Lock()
	m.avgTick = smoothTick(m.avgTick, elapsed.Seconds())
	m.statsMu.Unlock()
}

// smoothTick folds one tick duration into the running average
func smoothTick(avg, sample float64) float64 {
	return avg*(1-tickAvgAlpha) + sample*tickAvgAlpha
}

func (m *Manager) tickRoom(r *Room, now time.Time) {
	defer func() {
		if p := recover(); p != nil {
			n := r.notePanic()
			m.log.Error("room tick panicked", "room", r.ID, "panic", p, "count", n, "stack", string(debug.Stack()))
			if n >= maxTickPanics {
				m.log.Error("ending room after repeated failures", "room", r.ID)
				r.end(now)
			}
		}
	}()

	out, ok := r.tick(now, m.opts.LeaderboardEvery)
	if !ok {
		return
	}

	m.pub.PublishState(out.Frame)
	for _, k := range out.Kills {
		m.pub.Broadcast(r.ID, &protocol.KillFeedEntry{Killer: k.Killer, Victim: k.Victim, KillerMass: round1(k.KillerMass)})
		m.track(EventKill, r.ID, "", map[string]any{"killer": k.Killer, "victim": k.Victim, "killer_mass": k.KillerMass})
	}
	m.metrics.killed(r.Config.Mode, len(out.Kills))
	for _, id := range out.Eliminated {
		m.log.Info("player eliminated", "room", r.ID, "player", id)
		m.track(EventElimination, r.ID, id, nil)
	}
	if out.Leaderboard != nil {
		m.pub.Broadcast(r.ID, &protocol.Leaderboard{Entries: out.Leaderboard})
	}
	if out.MatchEnded {
		m.endMatch(r, out.Winners, now)
	}
	r.clearPanics()
}

func (m *Manager) endMatch(r *Room, winners []protocol.LeaderboardEntry, now time.Time) {
	m.log.Info("match ended", "room", r.ID, "mode", r.Config.Mode, "winners", len(winners))
	m.pub.Broadcast(r.ID, &protocol.MatchEnd{Winners: winners})

	ids := make([]string, len(winners))
	for i, w := range winners {
		ids[i] = w.PlayerID
	}
	m.track(EventMatchEnded, r.ID, "", map[string]any{"winners": ids})

	if m.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	res := MatchResult{
		RoomID:    r.ID,
		Mode:      r.Config.Mode,
		StartedAt: r.createdAt,
		EndedAt:   now,
		Winners:   winners,
	}
	if err := m.opts.Recorder.RecordMatch(ctx, res); err != nil {
		m.log.Error("record match failed", "room", r.ID, "err", err)
	}
}

// cleanup closes rooms that sat empty past the grace period and ended
// rooms whose results have been shown long enough
func (m *Manager) cleanup(now time.Time) {
	m.mu.Lock()
	type closing struct {
		room    *Room
		players []string
	}
	var closed []closing
	for _, r := range m.sortedRoomsLocked() {
		if !r.shouldClose(now, m.opts.EmptyGrace, m.opts.ResultLinger) {
			continue
		}
		players := r.close()
		for _, id := range players {
			if m.playerRooms[id] == r.ID {
				delete(m.playerRooms, id)
			}
		}
		if r.Code != "" {
			delete(m.codes, r.Code)
		}
		delete(m.rooms, r.ID)
		m.metrics.playerLeft(r.Config.Mode, len(players))
		m.metrics.roomClosed(r.Config.Mode)
		closed = append(closed, closing{r, players})
	}
	m.mu.Unlock()

	for _, c := range closed {
		for _, id := range c.players {
			m.pub.SendTo(id, &protocol.Error{Message: "room closed"})
		}
		m.log.Info("room closed", "room", c.room.ID, "mode", c.room.Config.Mode)
		m.track(EventRoomClosed, c.room.ID, "", nil)
	}
}
