package room

import (
	"context"
	"time"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
)

//go:generate go tool mockgen -destination=./mocks/publisher_mock.go -package=mocks . Publisher,MatchRecorder,EventTracker

// StateFrame is the end-of-tick world of one room. Focus holds the camera
// centre of every player that still has cells.
type StateFrame struct {
	RoomID       string
	Tick         uint64
	Snapshot     protocol.Snapshot
	Focus        map[string]protocol.Point
	DefaultFocus protocol.Point
}

// Publisher delivers room output to connected clients. Implementations must
// not block the scheduler on a slow client.
type Publisher interface {
	PublishState(frame StateFrame)
	Broadcast(roomID string, msg protocol.ServerMessage)
	SendTo(playerID string, msg protocol.ServerMessage)
}

// MatchResult is what gets persisted when a timed match ends
type MatchResult struct {
	RoomID    string
	Mode      Mode
	StartedAt time.Time
	EndedAt   time.Time
	Winners   []protocol.LeaderboardEntry
}

// MatchRecorder persists finished matches
type MatchRecorder interface {
	RecordMatch(ctx context.Context, res MatchResult) error
}

// Event is an analytics record
type Event struct {
	Type     string
	RoomID   string
	PlayerID string
	Data     map[string]any
	At       time.Time
}

// Analytics event types
const (
	EventRoomCreated   = "room_created"
	EventRoomClosed    = "room_closed"
	EventPlayerJoined  = "player_join"
	EventPlayerLeft    = "player_leave"
	EventPlayerRespawn = "player_respawn"
	EventElimination   = "elimination"
	EventKill          = "kill"
	EventMatchEnded    = "match_end"
)

// EventTracker receives analytics events; Track must not block
type EventTracker interface {
	Track(evt Event)
}

type nopPublisher struct{}

func (nopPublisher) PublishState(StateFrame)                  {}
func (nopPublisher) Broadcast(string, protocol.ServerMessage) {}
func (nopPublisher) SendTo(string, protocol.ServerMessage)    {}

type nopTracker struct{}

func (nopTracker) Track(Event) {}
