package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
)

// fanoutLimit bounds the goroutines encoding one room's state frames
const fanoutLimit = 8

var ErrPlayerIDInUse = errors.New("player id already connected")

// Hub tracks connected clients, binds them to players and rooms, and
// delivers room output. It implements room.Publisher.
type Hub struct {
	log     *slog.Logger
	manager *room.Manager
	tokens  *TokenVerifier
	codecs  map[protocol.Format]*protocol.Codec

	rateLimit  int
	rateWindow time.Duration

	mu      sync.RWMutex
	clients map[*Client]struct{}
	players map[string]*Client
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	// Connection limiting (accessed from HTTP handlers)
	connMu        sync.Mutex
	ipConns       map[string]int
	totalConns    int
	maxConnsPerIP int
	maxConns      int
}

// NewHub creates a Hub; Attach must be called before clients connect
func NewHub(cfg Config, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	codecs := make(map[protocol.Format]*protocol.Codec, 2)
	for _, f := range []protocol.Format{protocol.FormatJSON, protocol.FormatMsgpack} {
		c := protocol.NewCodec(f, cfg.Compression)
		if cfg.CompressionThreshold > 0 {
			c.Threshold = cfg.CompressionThreshold
		}
		codecs[f] = c
	}
	return &Hub{
		log:           log,
		tokens:        NewTokenVerifier(cfg.JWTSecret, cfg.RequireToken),
		codecs:        codecs,
		rateLimit:     cfg.RateLimitMessages,
		rateWindow:    cfg.RateLimitWindow,
		clients:       make(map[*Client]struct{}),
		players:       make(map[string]*Client),
		rooms:         make(map[string]map[*Client]struct{}),
		register:      make(chan *Client, 64),
		unregister:    make(chan *Client, 64),
		ipConns:       make(map[string]int),
		maxConnsPerIP: cfg.MaxConnsPerIP,
		maxConns:      cfg.MaxConns,
	}
}

// Attach wires the room manager the hub forwards client operations to
func (h *Hub) Attach(m *room.Manager) {
	h.manager = m
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= h.maxConns {
		return false
	}
	return h.ipConns[ip] < h.maxConnsPerIP
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.drop(c)

		case <-ctx.Done():
			h.mu.RLock()
			all := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				all = append(all, c)
			}
			h.mu.RUnlock()
			for _, c := range all {
				c.close()
			}
			return nil
		}
	}
}

// drop forgets a client and takes its player out of the game
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	playerID := h.unbindLocked(c)
	h.mu.Unlock()

	if playerID != "" && h.manager != nil {
		h.manager.RemovePlayer(playerID)
	}
}

// unbindLocked clears the client's player and room bindings; returns the old player id
func (h *Hub) unbindLocked(c *Client) string {
	playerID, roomID := c.binding()
	if playerID != "" && h.players[playerID] == c {
		delete(h.players, playerID)
	}
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	c.bind("", "")
	return playerID
}

// join seats the client's player in a room. The player binding is made before
// the manager sends the init message so it reaches this client.
func (h *Hub) join(c *Client, id Identity, roomID string) error {
	h.mu.Lock()
	if other, ok := h.players[id.PlayerID]; ok && other != c {
		h.mu.Unlock()
		return ErrPlayerIDInUse
	}
	_, prevRoom := c.binding()
	prevPlayer := h.unbindLocked(c)
	h.players[id.PlayerID] = c
	c.bind(id.PlayerID, "")
	h.mu.Unlock()

	if prevPlayer != "" && prevPlayer != id.PlayerID {
		h.manager.RemovePlayer(prevPlayer)
	}

	c.resetDelta()
	if err := h.manager.AddPlayer(roomID, id.PlayerID, id.Name); err != nil {
		h.mu.Lock()
		if prevPlayer == id.PlayerID && prevRoom != "" {
			// a refused move leaves the player in their old room
			h.seatLocked(c, id.PlayerID, prevRoom)
		} else {
			h.unbindLocked(c)
		}
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	h.seatLocked(c, id.PlayerID, roomID)
	h.mu.Unlock()

	if frame, ok := h.manager.Snapshot(roomID); ok {
		if err := c.pushState(frame, h.codecs[c.format]); err != nil {
			h.log.Warn("initial state", "player", id.PlayerID, "err", err)
		}
	}
	return nil
}

// seatLocked binds the client to a player and adds it to the room's members
func (h *Hub) seatLocked(c *Client, playerID, roomID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomID] = members
	}
	members[c] = struct{}{}
	h.players[playerID] = c
	c.bind(playerID, roomID)
}

func (h *Hub) members(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.rooms[roomID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// PublishState sends every member of the frame's room its culled, delta-encoded view
func (h *Hub) PublishState(frame room.StateFrame) {
	members := h.members(frame.RoomID)
	if len(members) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(fanoutLimit)
	for _, c := range members {
		g.Go(func() error {
			return c.pushState(frame, h.codecs[c.format])
		})
	}
	if err := g.Wait(); err != nil {
		h.log.Error("publish state", "room", frame.RoomID, "err", err)
	}
}

// Broadcast sends msg to every member of a room, encoding once per wire format
func (h *Hub) Broadcast(roomID string, msg protocol.ServerMessage) {
	members := h.members(roomID)
	frames := make(map[protocol.Format][]byte, 2)
	for _, c := range members {
		data, ok := frames[c.format]
		if !ok {
			var err error
			if data, err = h.codecs[c.format].Encode(msg); err != nil {
				h.log.Error("broadcast encode", "room", roomID, "type", msg.MessageType(), "err", err)
				return
			}
			frames[c.format] = data
		}
		c.enqueue(data)
	}
}

// SendTo delivers msg to the client bound to playerID, if any
func (h *Hub) SendTo(playerID string, msg protocol.ServerMessage) {
	h.mu.RLock()
	c, ok := h.players[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.sendMsg(msg)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
