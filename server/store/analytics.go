package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
)

const (
	analyticsQueue     = 1024
	analyticsBatch     = 50
	analyticsFlushEach = 5 * time.Second
)

// Analytics persists room events with batched background writes
type Analytics struct {
	db     *DB
	log    *slog.Logger
	events chan room.Event
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu      sync.Mutex
	dropped int
}

// NewAnalytics creates and starts the background writer
func NewAnalytics(db *DB, log *slog.Logger) *Analytics {
	if log == nil {
		log = slog.Default()
	}
	a := &Analytics{
		db:     db,
		log:    log,
		events: make(chan room.Event, analyticsQueue),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event; it never blocks the caller
func (a *Analytics) Track(evt room.Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	select {
	case <-a.stop:
		return
	default:
	}
	select {
	case a.events <- evt:
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
	}
}

// Dropped returns how many events were discarded because the queue was full
func (a *Analytics) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Stop flushes queued events and shuts the writer down
func (a *Analytics) Stop() {
	a.once.Do(func() { close(a.stop) })
	a.wg.Wait()
}

func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]room.Event, 0, analyticsBatch)
	ticker := time.NewTicker(analyticsFlushEach)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatch {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					a.flush(batch)
					return
				}
			}
		}
	}
}

func (a *Analytics) flush(events []room.Event) {
	if a.db == nil || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := a.db.conn.BeginTx(ctx, nil)
	if err != nil {
		a.log.Error("analytics: begin tx", "err", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO analytics_events (event_type, room_id, player_id, data, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		a.log.Error("analytics: prepare", "err", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		data := sql.NullString{}
		if len(evt.Data) > 0 {
			b, err := json.Marshal(evt.Data)
			if err != nil {
				a.log.Warn("analytics: encode event data", "type", evt.Type, "err", err)
			} else {
				data = sql.NullString{String: string(b), Valid: true}
			}
		}
		if _, err := stmt.ExecContext(ctx, evt.Type,
			sql.NullString{String: evt.RoomID, Valid: evt.RoomID != ""},
			sql.NullString{String: evt.PlayerID, Valid: evt.PlayerID != ""},
			data, evt.At.UnixMilli()); err != nil {
			a.log.Error("analytics: insert", "type", evt.Type, "err", err)
		}
	}
	if err := tx.Commit(); err != nil {
		a.log.Error("analytics: commit", "err", err)
	}
}

// EventCounts returns the number of events of each type recorded since the given time
func (a *Analytics) EventCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	result := make(map[string]int)
	if a.db == nil {
		return result, nil
	}
	rows, err := a.db.conn.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= ?
		GROUP BY event_type`, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		result[typ] = n
	}
	return result, rows.Err()
}
