// Package protocol defines the client/server wire messages and the per-client
// encoding pipeline: framing, compression, viewport culling, delta encoding
// and inbound rate limiting.
package protocol

// MsgType is the wire tag of a message
type MsgType string

// Client -> Server message types
const (
	TypeJoin   MsgType = "join"
	TypeInput  MsgType = "input"
	TypeAction MsgType = "action"
	TypeChat   MsgType = "chat"
)

// Server -> Client message types
const (
	TypeInit          MsgType = "init"
	TypeState         MsgType = "state"
	TypeLeaderboard   MsgType = "leaderboard"
	TypeKillFeedEntry MsgType = "kill_feed_entry"
	TypeChatBroadcast MsgType = "chat_broadcast"
	TypeError         MsgType = "error"
	TypeMatchEnd      MsgType = "match_end"
)

// ActionKind is the closed set of player actions
type ActionKind string

const (
	ActionSplit   ActionKind = "split"
	ActionEject   ActionKind = "eject"
	ActionRespawn ActionKind = "respawn"
)

// Valid reports whether k is a known action
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSplit, ActionEject, ActionRespawn:
		return true
	}
	return false
}

// Header is carried by every message
type Header struct {
	Type      MsgType `json:"type"`
	Timestamp float64 `json:"timestamp"` // seconds since epoch
}

func (h *Header) header() *Header { return h }

// Message is any wire message
type Message interface {
	header() *Header
	MessageType() MsgType
}

// ClientMessage is one of *Join, *Input, *Action, *Chat
type ClientMessage interface {
	Message
	isClient()
}

// ServerMessage is one of *Init, *StateFull, *StateDelta, *Leaderboard,
// *KillFeedEntry, *ChatBroadcast, *Error, *MatchEnd
type ServerMessage interface {
	Message
	isServer()
}

// --- client messages ---

// Join asks to enter a room. Code selects a private room; Private creates one.
type Join struct {
	Header
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Mode       string  `json:"mode"`
	Code       string  `json:"code,omitempty"`
	Private    bool    `json:"private,omitempty"`
	Token      string  `json:"token,omitempty"`
	Viewport   float64 `json:"viewport,omitempty"`
}

// Input steers the player's cells
type Input struct {
	Header
	DirX float64 `json:"dir_x"`
	DirY float64 `json:"dir_y"`
}

// Action requests a split, eject or respawn
type Action struct {
	Header
	Kind ActionKind `json:"kind"`
}

// Chat is a chat line from the player
type Chat struct {
	Header
	Text string `json:"text"`
}

func (*Join) MessageType() MsgType   { return TypeJoin }
func (*Input) MessageType() MsgType  { return TypeInput }
func (*Action) MessageType() MsgType { return TypeAction }
func (*Chat) MessageType() MsgType   { return TypeChat }

func (*Join) isClient()   {}
func (*Input) isClient()  {}
func (*Action) isClient() {}
func (*Chat) isClient()   {}

// --- entity states ---

// CellState is a cell as seen by clients
type CellState struct {
	ID      uint32  `json:"id"`
	OwnerID string  `json:"owner_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Radius  float64 `json:"radius"`
	Mass    float64 `json:"mass"`
}

// FoodState is a food pickup as seen by clients
type FoodState struct {
	ID     uint32  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Value  float64 `json:"value"`
}

// VirusState is a virus as seen by clients
type VirusState struct {
	ID     uint32  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// EjectedState is ejected mass as seen by clients
type EjectedState struct {
	ID     uint32  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

func (s CellState) EntityID() uint32    { return s.ID }
func (s FoodState) EntityID() uint32    { return s.ID }
func (s VirusState) EntityID() uint32   { return s.ID }
func (s EjectedState) EntityID() uint32 { return s.ID }

func (s CellState) Position() Point    { return Point{s.X, s.Y} }
func (s FoodState) Position() Point    { return Point{s.X, s.Y} }
func (s VirusState) Position() Point   { return Point{s.X, s.Y} }
func (s EjectedState) Position() Point { return Point{s.X, s.Y} }

// Entity is implemented by every entity state
type Entity interface {
	comparable
	EntityID() uint32
	Position() Point
}

// Point is a world position
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Snapshot is the full entity set of one room at the end of a tick
type Snapshot struct {
	Cells   []CellState
	Food    []FoodState
	Viruses []VirusState
	Ejected []EjectedState
}

// Delta lists the changes of one category since the last frame
type Delta[T any] struct {
	Added   []T      `json:"added"`
	Updated []T      `json:"updated"`
	Removed []uint32 `json:"removed"`
}

// Empty reports whether the delta carries no change
func (d Delta[T]) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// --- server messages ---

// InitConfig describes the room a player just joined
type InitConfig struct {
	RoomID        string  `json:"room_id"`
	Mode          string  `json:"mode"`
	MaxPlayers    int     `json:"max_players"`
	PrivateCode   string  `json:"private_code,omitempty"`
	MatchDuration float64 `json:"match_duration,omitempty"`
	Team          int     `json:"team,omitempty"`
}

// Init is sent once after a successful join
type Init struct {
	Header
	PlayerID  string     `json:"player_id"`
	WorldSize float64    `json:"world_size"`
	Config    InitConfig `json:"config"`
}

// StateFull carries every visible entity; it seeds the client's baseline
type StateFull struct {
	Header
	IsDelta bool           `json:"is_delta"`
	Cells   []CellState    `json:"cells"`
	Food    []FoodState    `json:"food"`
	Viruses []VirusState   `json:"viruses"`
	Ejected []EjectedState `json:"ejected"`
}

// StateDelta carries only the changes since the client's last frame
type StateDelta struct {
	Header
	IsDelta bool                `json:"is_delta"`
	Cells   Delta[CellState]    `json:"cells"`
	Food    Delta[FoodState]    `json:"food"`
	Viruses Delta[VirusState]   `json:"viruses"`
	Ejected Delta[EjectedState] `json:"ejected"`
}

// LeaderboardEntry is one ranked player
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Kills    int    `json:"kills"`
}

// Leaderboard is the room's current top list
type Leaderboard struct {
	Header
	Entries []LeaderboardEntry `json:"entries"`
}

// KillFeedEntry announces one predation
type KillFeedEntry struct {
	Header
	Killer     string  `json:"killer"`
	Victim     string  `json:"victim"`
	KillerMass float64 `json:"killer_mass"`
}

// ChatBroadcast relays a chat line to the room
type ChatBroadcast struct {
	Header
	From string `json:"from"`
	Text string `json:"text"`
}

// Error reports a rejected message or operation to its sender
type Error struct {
	Header
	Message string `json:"message"`
}

// MatchEnd announces the end of a timed match
type MatchEnd struct {
	Header
	Winners []LeaderboardEntry `json:"winners"`
}

func (*Init) MessageType() MsgType          { return TypeInit }
func (*StateFull) MessageType() MsgType     { return TypeState }
func (*StateDelta) MessageType() MsgType    { return TypeState }
func (*Leaderboard) MessageType() MsgType   { return TypeLeaderboard }
func (*KillFeedEntry) MessageType() MsgType { return TypeKillFeedEntry }
func (*ChatBroadcast) MessageType() MsgType { return TypeChatBroadcast }
func (*Error) MessageType() MsgType         { return TypeError }
func (*MatchEnd) MessageType() MsgType      { return TypeMatchEnd }

func (*Init) isServer()          {}
func (*StateFull) isServer()     {}
func (*StateDelta) isServer()    {}
func (*Leaderboard) isServer()   {}
func (*KillFeedEntry) isServer() {}
func (*ChatBroadcast) isServer() {}
func (*Error) isServer()         {}
func (*MatchEnd) isServer()      {}
