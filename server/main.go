package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// newServer wires storage, the room manager and the hub together
func newServer(cfg Config, log *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log}
	opts := room.Options{
		TickRate:   cfg.TickRate,
		MaxRooms:   cfg.MaxRooms,
		EmptyGrace: cfg.EmptyRoomGrace,
		Logger:     log,
	}

	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.db = db
		s.analytics = store.NewAnalytics(db, log)
		opts.Recorder = db
		opts.Tracker = s.analytics
	}

	s.hub = NewHub(cfg, log)
	opts.Publisher = s.hub
	s.manager = room.NewManager(opts)
	s.hub.Attach(s.manager)
	return s, nil
}

// Close flushes analytics and closes the database
func (s *Server) Close() error {
	if s.analytics != nil {
		s.analytics.Stop()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	s, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.manager.Run(ctx) })
	g.Go(func() error { return s.hub.Run(ctx) })
	g.Go(func() error {
		log.Info("server starting", "addr", cfg.Addr, "tick_rate", cfg.TickRate, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	return g.Wait()
}
