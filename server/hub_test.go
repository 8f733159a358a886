package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHub(DefaultConfig(), log)
	h.Attach(room.NewManager(room.Options{Publisher: h, Logger: log}))
	return h
}

// drain decodes every frame queued for the client
func drain(t *testing.T, c *Client) []protocol.ServerMessage {
	t.Helper()
	var out []protocol.ServerMessage
	for {
		select {
		case data := <-c.send:
			msg, err := jsonCodec.DecodeServer(data)
			if err != nil {
				t.Fatalf("decode queued frame: %v", err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func stateFrame(x float64) room.StateFrame {
	return room.StateFrame{
		RoomID: "r1",
		Snapshot: protocol.Snapshot{
			Cells: []protocol.CellState{{ID: 1, OwnerID: "p1", X: x, Y: 500, Radius: 4, Mass: 16}},
		},
		Focus:        map[string]protocol.Point{"p1": {X: 500, Y: 500}},
		DefaultFocus: protocol.Point{X: 500, Y: 500},
	}
}

func TestConcurrentPushesQueueFullFrameFirst(t *testing.T) {
	h := newTestHub(t)
	codec := h.codecs[protocol.FormatJSON]

	for trial := range 500 {
		c := NewClient(h, nil, "127.0.0.1", protocol.FormatJSON)
		c.bind("p1", "r1")

		var wg sync.WaitGroup
		gate := make(chan struct{})
		for _, x := range []float64{500, 510} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				if err := c.pushState(stateFrame(x), codec); err != nil {
					t.Error(err)
				}
			}()
		}
		close(gate)
		wg.Wait()

		msgs := drain(t, c)
		if len(msgs) != 2 {
			t.Fatalf("trial %d: %d frames queued, want 2", trial, len(msgs))
		}
		if _, ok := msgs[0].(*protocol.StateFull); !ok {
			t.Fatalf("trial %d: first queued frame is %T, want full snapshot", trial, msgs[0])
		}
		var mirror protocol.Mirror
		for _, m := range msgs {
			if !mirror.Apply(m) {
				t.Fatalf("trial %d: mirror rejected %T", trial, m)
			}
		}
	}
}

func TestInputErrorsOnlyWhenUnbound(t *testing.T) {
	h := newTestHub(t)

	lone := NewClient(h, nil, "127.0.0.1", protocol.FormatJSON)
	lone.dispatch(&protocol.Input{DirX: 1})
	msgs := drain(t, lone)
	if len(msgs) != 1 {
		t.Fatalf("unbound input queued %d frames, want 1 error", len(msgs))
	}
	if e, ok := msgs[0].(*protocol.Error); !ok || e.Message != "not in a room" {
		t.Errorf("unbound input reply = %+v", msgs[0])
	}

	c := NewClient(h, nil, "127.0.0.1", protocol.FormatJSON)
	c.dispatch(&protocol.Join{PlayerID: "p1", PlayerName: "Ann", Mode: "classic"})
	drain(t, c)

	// the player has no cells to steer, as after an elimination
	h.manager.RemovePlayer("p1")
	c.dispatch(&protocol.Input{DirX: 1})
	for _, m := range drain(t, c) {
		if e, ok := m.(*protocol.Error); ok {
			t.Errorf("bound player without cells got error %q", e.Message)
		}
	}
}

func TestRefusedMoveKeepsHubBinding(t *testing.T) {
	h := newTestHub(t)
	full, err := h.manager.CreateRoom("hardcore", false)
	if err != nil {
		t.Fatal(err)
	}
	for i := range 20 {
		if err := h.manager.AddPlayer(full, fmt.Sprintf("h%d", i), "h"); err != nil {
			t.Fatal(err)
		}
	}

	c := NewClient(h, nil, "127.0.0.1", protocol.FormatJSON)
	c.dispatch(&protocol.Join{PlayerID: "p1", Mode: "classic"})
	_, home := c.binding()
	if home == "" {
		t.Fatal("join did not bind a room")
	}

	if err := h.join(c, Identity{PlayerID: "p1", Name: "Ann"}, full); !errors.Is(err, room.ErrRoomFull) {
		t.Fatalf("err = %v, want ErrRoomFull", err)
	}
	if pid, rid := c.binding(); pid != "p1" || rid != home {
		t.Errorf("binding = %q/%q, want p1/%s", pid, rid, home)
	}
	if members := h.members(home); len(members) != 1 || members[0] != c {
		t.Errorf("home room members = %v", members)
	}
	if got, _ := h.manager.PlayerRoom("p1"); got != home {
		t.Errorf("manager seats p1 in %q, want %s", got, home)
	}
}
