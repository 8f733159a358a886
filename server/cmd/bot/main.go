// Command bot connects headless players to an arena server for load testing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
)

const (
	steerEvery     = 100 * time.Millisecond
	reconnectDelay = 2 * time.Second
	splitMass      = 60
	ejectChance    = 0.02
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "server websocket URL")
	count := flag.Int("count", 10, "number of bots")
	mode := flag.String("mode", "classic", "game mode to join")
	format := flag.String("format", "json", "wire format: json or msgpack")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := protocol.ParseFormat(*format)
	endpoint := *url
	if f == protocol.FormatMsgpack {
		endpoint += "?format=msgpack"
	}
	log.Info("starting bots", "count", *count, "server", endpoint, "mode", *mode)

	var g errgroup.Group
	for i := range *count {
		b := &bot{
			name:  fmt.Sprintf("bot-%d", i),
			id:    uuid.NewString(),
			mode:  *mode,
			codec: protocol.NewCodec(f, false),
			log:   log.With("bot", i),
		}
		g.Go(func() error {
			b.run(ctx, endpoint)
			return nil
		})
	}
	g.Wait()
	log.Info("all bots stopped")
}

type bot struct {
	name  string
	id    string
	mode  string
	codec *protocol.Codec
	log   *slog.Logger

	mu     sync.Mutex
	mirror protocol.Mirror
	joined bool
}

func (b *bot) run(ctx context.Context, url string) {
	for ctx.Err() == nil {
		err := b.session(ctx, url)
		if err != nil && ctx.Err() == nil {
			b.log.Warn("session ended, reconnecting", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(reconnectDelay):
			}
		}
	}
}

func (b *bot) session(ctx context.Context, url string) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 22)

	b.mu.Lock()
	b.mirror = protocol.Mirror{}
	b.joined = false
	b.mu.Unlock()

	if err := b.write(ctx, conn, &protocol.Join{PlayerID: b.id, PlayerName: b.name, Mode: b.mode}); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.readLoop(ctx, conn) })
	g.Go(func() error { return b.steerLoop(ctx, conn) })
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		conn.Close(websocket.StatusNormalClosure, "shutdown")
		return nil
	}
	return err
}

func (b *bot) write(ctx context.Context, conn *websocket.Conn, msg protocol.ClientMessage) error {
	data, err := b.codec.EncodeClient(msg)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.MessageType(), err)
	}
	return nil
}

func (b *bot) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		msg, err := b.codec.DecodeServer(data)
		if err != nil {
			b.log.Debug("decode", "err", err)
			continue
		}
		switch m := msg.(type) {
		case *protocol.Init:
			b.mu.Lock()
			b.joined = true
			b.mu.Unlock()
			b.log.Info("joined", "room", m.Config.RoomID, "mode", m.Config.Mode)
		case *protocol.StateFull, *protocol.StateDelta:
			b.mu.Lock()
			b.mirror.Apply(m)
			b.mu.Unlock()
		case *protocol.MatchEnd:
			b.log.Info("match ended", "winners", len(m.Winners))
		case *protocol.Error:
			b.log.Debug("server error", "message", m.Message)
		}
	}
}

// steerLoop heads for the nearest food, splits when large and ejects now and then
func (b *bot) steerLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(steerEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		b.mu.Lock()
		joined := b.joined
		cells := b.mirror.Cells(b.id)
		food := b.mirror.Snapshot().Food
		b.mu.Unlock()
		if !joined {
			continue
		}
		if len(cells) == 0 {
			// eliminated; the server refuses this in modes without respawn
			if err := b.write(ctx, conn, &protocol.Action{Kind: protocol.ActionRespawn}); err != nil {
				return err
			}
			continue
		}

		dx, dy, mass := heading(cells, food)
		if err := b.write(ctx, conn, &protocol.Input{DirX: dx, DirY: dy}); err != nil {
			return err
		}
		switch {
		case mass >= splitMass && len(cells) == 1:
			err := b.write(ctx, conn, &protocol.Action{Kind: protocol.ActionSplit})
			if err != nil {
				return err
			}
		case rand.Float64() < ejectChance:
			err := b.write(ctx, conn, &protocol.Action{Kind: protocol.ActionEject})
			if err != nil {
				return err
			}
		}
	}
}

// heading points from the largest own cell toward the nearest food, or a random
// direction when none is visible
func heading(cells []protocol.CellState, food []protocol.FoodState) (dx, dy, mass float64) {
	big := cells[0]
	for _, c := range cells[1:] {
		if c.Mass > big.Mass {
			big = c
		}
	}
	best := math.Inf(1)
	for _, f := range food {
		if d := math.Hypot(f.X-big.X, f.Y-big.Y); d < best {
			best = d
			dx, dy = f.X-big.X, f.Y-big.Y
		}
	}
	if math.IsInf(best, 1) || best == 0 {
		a := rand.Float64() * 2 * math.Pi
		return math.Cos(a), math.Sin(a), big.Mass
	}
	return dx / best, dy / best, big.Mass
}
