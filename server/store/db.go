package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// MatchRow is a finished match with its podium
type MatchRow struct {
	ID        int64                       `json:"id"`
	RoomID    string                      `json:"room_id"`
	Mode      string                      `json:"mode"`
	Duration  float64                     `json:"duration"`
	EndedAt   time.Time                   `json:"ended_at"`
	Winners   []protocol.LeaderboardEntry `json:"winners"`
}

// Open opens (or creates) the SQLite database at path
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		ended_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_winners (
		match_id INTEGER NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		rank INTEGER NOT NULL,
		player_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, rank)
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		room_id TEXT,
		player_id TEXT,
		data TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_matches_ended ON matches(ended_at);
	CREATE INDEX IF NOT EXISTS idx_match_winners_player ON match_winners(player_id);
	CREATE INDEX IF NOT EXISTS idx_events_type_time ON analytics_events(event_type, created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RecordMatch stores a finished match and its winners in one transaction
func (db *DB) RecordMatch(ctx context.Context, res room.MatchResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r, err := tx.ExecContext(ctx,
		"INSERT INTO matches (room_id, mode, duration, ended_at) VALUES (?, ?, ?, ?)",
		res.RoomID, string(res.Mode), res.EndedAt.Sub(res.StartedAt).Seconds(), res.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	matchID, err := r.LastInsertId()
	if err != nil {
		return err
	}

	for _, w := range res.Winners {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO match_winners (match_id, rank, player_id, name, score, kills) VALUES (?, ?, ?, ?, ?, ?)",
			matchID, w.Rank, w.PlayerID, w.Name, w.Score, w.Kills,
		); err != nil {
			return fmt.Errorf("insert winner %s: %w", w.PlayerID, err)
		}
	}
	return tx.Commit()
}

// RecentMatches returns the latest finished matches, newest first
func (db *DB) RecentMatches(ctx context.Context, limit int) ([]MatchRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, room_id, mode, duration, ended_at
		FROM matches
		ORDER BY ended_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchRow
	for rows.Next() {
		var m MatchRow
		var ended int64
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Mode, &m.Duration, &ended); err != nil {
			return nil, err
		}
		m.EndedAt = time.UnixMilli(ended).UTC()
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if result[i].Winners, err = db.winners(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (db *DB) winners(ctx context.Context, matchID int64) ([]protocol.LeaderboardEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT rank, player_id, name, score, kills
		FROM match_winners WHERE match_id = ? ORDER BY rank`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []protocol.LeaderboardEntry
	for rows.Next() {
		var e protocol.LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.PlayerID, &e.Name, &e.Score, &e.Kills); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PlayerWins counts podium finishes of a player
func (db *DB) PlayerWins(ctx context.Context, playerID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM match_winners WHERE player_id = ? AND rank = 1", playerID).Scan(&n)
	return n, err
}
