package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
)

// ---------- helpers ----------

// startTestServer runs a full server (scheduler, hub, routes) on an httptest listener
func startTestServer(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TickRate = 60
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := newServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go s.manager.Run(ctx)
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		cancel()
		srv.Close()
		s.Close()
	})
	return s, srv
}

// dialWS opens a WebSocket connection to the test server
func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// send frames a client message with the codec and writes it as binary
func send(t *testing.T, conn *websocket.Conn, codec *protocol.Codec, msg protocol.ClientMessage) {
	t.Helper()
	data, err := codec.EncodeClient(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

func sendText(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// readUntil reads server messages until match accepts one
func readUntil(t *testing.T, conn *websocket.Conn, codec *protocol.Codec, match func(protocol.ServerMessage) bool) protocol.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			t.Fatalf("server sent message type %d, want binary", msgType)
		}
		msg, err := codec.DecodeServer(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func isType[T protocol.ServerMessage](msg protocol.ServerMessage) bool {
	_, ok := msg.(T)
	return ok
}

func errorContaining(s string) func(protocol.ServerMessage) bool {
	return func(msg protocol.ServerMessage) bool {
		e, ok := msg.(*protocol.Error)
		return ok && strings.Contains(e.Message, s)
	}
}

func isState(msg protocol.ServerMessage) bool {
	return isType[*protocol.StateFull](msg) || isType[*protocol.StateDelta](msg)
}

func joinAs(t *testing.T, conn *websocket.Conn, codec *protocol.Codec, join *protocol.Join) *protocol.Init {
	t.Helper()
	send(t, conn, codec, join)
	return readUntil(t, conn, codec, isType[*protocol.Init]).(*protocol.Init)
}

var jsonCodec = protocol.NewCodec(protocol.FormatJSON, true)

// ---------- tests ----------

func TestJoinReceivesInitThenFullState(t *testing.T) {
	_, srv := startTestServer(t, nil)
	conn := dialWS(t, srv, "")

	im := joinAs(t, conn, jsonCodec, &protocol.Join{PlayerID: "p1", PlayerName: "Alice", Mode: "classic"})
	if im.PlayerID != "p1" || im.WorldSize != 2000 || im.Config.Mode != "classic" || im.Config.MaxPlayers != 30 {
		t.Fatalf("init = %+v", im)
	}
	if im.Timestamp == 0 {
		t.Error("server messages should carry a timestamp")
	}

	first := readUntil(t, conn, jsonCodec, isState)
	if _, ok := first.(*protocol.StateFull); !ok {
		t.Fatalf("first state is %T, want full snapshot", first)
	}
	var mirror protocol.Mirror
	mirror.Apply(first)
	if len(mirror.Cells("p1")) != 1 {
		t.Fatalf("own cells in first frame = %d, want 1", len(mirror.Cells("p1")))
	}

	delta := readUntil(t, conn, jsonCodec, isState)
	if _, ok := delta.(*protocol.StateDelta); !ok {
		t.Fatalf("second state is %T, want delta", delta)
	}
	if !mirror.Apply(delta) {
		t.Fatal("mirror rejected delta")
	}
	if len(mirror.Cells("p1")) != 1 {
		t.Error("own cell lost after delta")
	}
	if len(mirror.Snapshot().Food) == 0 {
		t.Error("viewport should contain food")
	}
}

func TestTextFrameJoinAndChat(t *testing.T) {
	_, srv := startTestServer(t, nil)
	conn := dialWS(t, srv, "")

	sendText(t, conn, `{"type":"join","player_id":"p2","player_name":"Bob","mode":"teams"}`)
	im := readUntil(t, conn, jsonCodec, isType[*protocol.Init]).(*protocol.Init)
	if im.Config.Team == room.TeamNone {
		t.Errorf("team mode join without a team: %+v", im.Config)
	}

	sendText(t, conn, `{"type":"chat","text":"  hello arena  "}`)
	msg := readUntil(t, conn, jsonCodec, isType[*protocol.ChatBroadcast]).(*protocol.ChatBroadcast)
	if msg.From != "Bob" || msg.Text != "hello arena" {
		t.Errorf("chat = %+v", msg)
	}
}

func TestInvalidMessagesGetErrors(t *testing.T) {
	_, srv := startTestServer(t, nil)
	conn := dialWS(t, srv, "")

	sendText(t, conn, `{"type":"dance"}`)
	readUntil(t, conn, jsonCodec, errorContaining("unknown message type"))

	sendText(t, conn, `{"type":"action","kind":"teleport"}`)
	readUntil(t, conn, jsonCodec, errorContaining("unknown action"))

	sendText(t, conn, `not json`)
	readUntil(t, conn, jsonCodec, errorContaining("malformed"))

	sendText(t, conn, `{"type":"input","dir_x":1,"dir_y":0}`)
	readUntil(t, conn, jsonCodec, errorContaining("not in a room"))

	sendText(t, conn, `{"type":"join","mode":"battle-royale"}`)
	readUntil(t, conn, jsonCodec, errorContaining("unknown game mode"))
}

func TestMsgpackClient(t *testing.T) {
	_, srv := startTestServer(t, nil)
	conn := dialWS(t, srv, "?format=msgpack")
	codec := protocol.NewCodec(protocol.FormatMsgpack, false)

	im := joinAs(t, conn, codec, &protocol.Join{PlayerID: "mp", PlayerName: "Pack", Mode: "fast"})
	if im.PlayerID != "mp" || im.WorldSize != 1500 || im.Config.MatchDuration != 300 {
		t.Fatalf("init = %+v", im)
	}
	if _, ok := readUntil(t, conn, codec, isState).(*protocol.StateFull); !ok {
		t.Error("first msgpack state should be full")
	}
}

func TestRateLimitRejectsExcessMessages(t *testing.T) {
	_, srv := startTestServer(t, func(c *Config) {
		c.RateLimitMessages = 3
		c.RateLimitWindow = time.Minute
	})
	conn := dialWS(t, srv, "")

	for range 4 {
		sendText(t, conn, `{"type":"input","dir_x":1,"dir_y":0}`)
	}
	readUntil(t, conn, jsonCodec, errorContaining("rate limit exceeded"))
}

func TestPrivateRoomByCodeAndQR(t *testing.T) {
	_, srv := startTestServer(t, nil)
	host := dialWS(t, srv, "")
	im := joinAs(t, host, jsonCodec, &protocol.Join{PlayerID: "host", PlayerName: "Host", Mode: "fast", Private: true})
	code := im.Config.PrivateCode
	if len(code) != 6 {
		t.Fatalf("private code = %q", code)
	}

	guest := dialWS(t, srv, "")
	ginit := joinAs(t, guest, jsonCodec, &protocol.Join{PlayerID: "guest", PlayerName: "Guest", Code: strings.ToLower(code)})
	if ginit.Config.RoomID != im.Config.RoomID {
		t.Errorf("guest joined %s, want %s", ginit.Config.RoomID, im.Config.RoomID)
	}

	resp, err := http.Get(srv.URL + "/rooms/qr?code=" + code)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("qr status %d, type %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("qr body is not a PNG")
	}

	resp, err = http.Get(srv.URL + "/rooms/qr?code=ZZZZZZ")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown code status %d", resp.StatusCode)
	}

	var rooms []room.Info
	getJSON(t, srv.URL+"/rooms", &rooms)
	for _, r := range rooms {
		if r.ID == im.Config.RoomID {
			t.Error("private room listed publicly")
		}
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
}

func TestRoomsAndHealth(t *testing.T) {
	_, srv := startTestServer(t, nil)
	conn := dialWS(t, srv, "")
	im := joinAs(t, conn, jsonCodec, &protocol.Join{PlayerID: "p1", Mode: "hardcore"})

	var rooms []room.Info
	getJSON(t, srv.URL+"/rooms", &rooms)
	if len(rooms) != 1 || rooms[0].ID != im.Config.RoomID || rooms[0].PlayerCount != 1 || rooms[0].Mode != room.ModeHardcore {
		t.Errorf("rooms = %+v", rooms)
	}

	var health healthResponse
	getJSON(t, srv.URL+"/healthz", &health)
	if health.Status != "ok" || health.Stats.TotalRooms != 1 || health.Stats.TotalPlayers != 1 {
		t.Errorf("health = %+v", health)
	}

	var matches []json.RawMessage
	getJSON(t, srv.URL+"/matches", &matches)
	if len(matches) != 0 {
		t.Errorf("matches without a database = %d", len(matches))
	}
}

func TestTokenRequired(t *testing.T) {
	const secret = "test-secret"
	_, srv := startTestServer(t, func(c *Config) {
		c.JWTSecret = secret
		c.RequireToken = true
	})
	conn := dialWS(t, srv, "")

	send(t, conn, jsonCodec, &protocol.Join{PlayerID: "spoof", Mode: "classic"})
	readUntil(t, conn, jsonCodec, errorContaining("unauthorized"))

	token := signToken(t, secret, jwt.MapClaims{
		"sub":  "u-42",
		"name": "Zed",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	im := joinAs(t, conn, jsonCodec, &protocol.Join{PlayerID: "spoof", Mode: "classic", Token: token})
	if im.PlayerID != "u-42" {
		t.Errorf("player id = %q, want the token subject", im.PlayerID)
	}
}

func TestDuplicatePlayerIDRejected(t *testing.T) {
	_, srv := startTestServer(t, nil)
	a := dialWS(t, srv, "")
	joinAs(t, a, jsonCodec, &protocol.Join{PlayerID: "same", Mode: "classic"})

	b := dialWS(t, srv, "")
	send(t, b, jsonCodec, &protocol.Join{PlayerID: "same", Mode: "classic"})
	readUntil(t, b, jsonCodec, errorContaining("already connected"))
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	s, srv := startTestServer(t, nil)
	conn := dialWS(t, srv, "")
	joinAs(t, conn, jsonCodec, &protocol.Join{PlayerID: "leaver", Mode: "classic"})
	if _, ok := s.manager.PlayerRoom("leaver"); !ok {
		t.Fatal("player not seated")
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.manager.PlayerRoom("leaver"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("disconnected player still seated")
}

func TestSplitAction(t *testing.T) {
	s, srv := startTestServer(t, nil)
	conn := dialWS(t, srv, "")
	joinAs(t, conn, jsonCodec, &protocol.Join{PlayerID: "splitter", Mode: "classic"})

	// a fresh cell (mass 10) is below the split threshold
	send(t, conn, jsonCodec, &protocol.Action{Kind: protocol.ActionSplit})
	send(t, conn, jsonCodec, &protocol.Action{Kind: protocol.ActionRespawn})
	readUntil(t, conn, jsonCodec, errorContaining("respawn not allowed"))

	if p, ok := s.manager.Player("splitter"); !ok || !p.Alive {
		t.Errorf("player = %+v", p)
	}
}
