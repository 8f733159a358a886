package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufSize    = 256
	defaultName    = "Player"
)

var errSlowClient = errors.New("send buffer full")

// Client is one WebSocket connection
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	ip      string
	format  protocol.Format
	limiter *protocol.RateLimiter
	once    sync.Once

	mu       sync.Mutex
	playerID string
	roomID   string
	viewport float64

	// guards delta, which is shared by the scheduler fan-out and joins
	stateMu sync.Mutex
	delta   protocol.DeltaEncoder
}

// NewClient creates a Client
func NewClient(hub *Hub, conn *websocket.Conn, ip string, format protocol.Format) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
		ip:       ip,
		format:   format,
		limiter:  protocol.NewRateLimiter(hub.rateLimit, hub.rateWindow),
		viewport: protocol.DefaultViewport,
	}
}

func (c *Client) binding() (playerID, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID, c.roomID
}

func (c *Client) bind(playerID, roomID string) {
	c.mu.Lock()
	c.playerID = playerID
	c.roomID = roomID
	c.mu.Unlock()
}

func (c *Client) setViewport(v float64) {
	if v <= 0 {
		v = protocol.DefaultViewport
	}
	c.mu.Lock()
	c.viewport = v
	c.mu.Unlock()
}

func (c *Client) resetDelta() {
	c.stateMu.Lock()
	c.delta.Reset()
	c.stateMu.Unlock()
}

// close shuts the connection down; the read pump then unregisters the client
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// enqueue hands a frame to the write pump. A client whose buffer is full is
// too slow to keep up and gets disconnected.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.hub.log.Warn("dropping slow client", "ip", c.ip, "player", c.playerIDOrEmpty())
		c.close()
		return false
	}
}

func (c *Client) playerIDOrEmpty() string {
	id, _ := c.binding()
	return id
}

func (c *Client) sendMsg(msg protocol.ServerMessage) {
	data, err := c.hub.codecs[c.format].Encode(msg)
	if err != nil {
		c.hub.log.Error("encode", "type", msg.MessageType(), "err", err)
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(format string, args ...any) {
	c.sendMsg(&protocol.Error{Message: fmt.Sprintf(format, args...)})
}

// pushState culls the frame to this client's viewport and sends it as a full
// snapshot or a delta against the previous one
func (c *Client) pushState(frame room.StateFrame, codec *protocol.Codec) error {
	c.mu.Lock()
	playerID, viewport := c.playerID, c.viewport
	c.mu.Unlock()

	center, ok := frame.Focus[playerID]
	if !ok {
		center = frame.DefaultFocus
	}
	view := protocol.Cull(frame.Snapshot, center, viewport)

	// frames must be queued in the order their deltas were taken
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	data, err := codec.Encode(c.delta.Encode(view))
	if err != nil {
		return fmt.Errorf("player %s: %w", playerID, err)
	}
	if !c.enqueue(data) {
		return fmt.Errorf("player %s: %w", playerID, errSlowClient)
	}
	return nil
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.ip)
		select {
		case c.hub.unregister <- c:
		default:
			c.hub.drop(c)
		}
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("ws read", "ip", c.ip, "err", err)
			}
			return
		}

		if !c.limiter.Allow(time.Now()) {
			c.sendError("rate limit exceeded")
			continue
		}

		msg, err := c.hub.codecs[c.format].DecodeClient(data, msgType == websocket.BinaryMessage)
		if err != nil {
			c.sendError("%v", err)
			continue
		}
		c.dispatch(msg)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) dispatch(msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case *protocol.Join:
		c.handleJoin(m)
	case *protocol.Input:
		playerID := c.playerIDOrEmpty()
		if playerID == "" {
			c.sendError("not in a room")
			return
		}
		// spectators have no cells to steer
		c.hub.manager.HandleInput(playerID, m.DirX, m.DirY)
	case *protocol.Action:
		c.handleAction(m)
	case *protocol.Chat:
		if !c.hub.manager.HandleChat(c.playerIDOrEmpty(), m.Text) {
			c.sendError("not in a room")
		}
	}
}

func (c *Client) handleJoin(m *protocol.Join) {
	claimed := Identity{PlayerID: m.PlayerID, Name: m.PlayerName}
	id, err := c.hub.tokens.Resolve(m.Token, claimed)
	if err != nil {
		c.sendError("unauthorized: %v", err)
		return
	}
	if id.PlayerID == "" {
		id.PlayerID = uuid.NewString()
	}
	if strings.TrimSpace(id.Name) == "" {
		id.Name = defaultName
	}

	var roomID string
	switch {
	case m.Code != "":
		roomID, err = c.hub.manager.JoinRoomByCode(m.Code)
	case m.Private:
		roomID, err = c.hub.manager.CreateRoom(m.Mode, true)
	default:
		roomID, err = c.hub.manager.FindOrCreateRoom(m.Mode)
	}
	if err != nil {
		c.sendError("join failed: %v", err)
		return
	}

	c.setViewport(m.Viewport)
	if err := c.hub.join(c, id, roomID); err != nil {
		c.sendError("join failed: %v", err)
		return
	}
	c.hub.log.Info("client joined", "ip", c.ip, "player", id.PlayerID, "room", roomID)
}

func (c *Client) handleAction(m *protocol.Action) {
	playerID := c.playerIDOrEmpty()
	if playerID == "" {
		c.sendError("not in a room")
		return
	}
	if !c.hub.manager.HandleAction(playerID, m.Kind) && m.Kind == protocol.ActionRespawn {
		c.sendError("respawn not allowed")
	}
}
