package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"
)

// Frame markers; the first byte of every binary frame
const (
	MarkerRaw        byte = 0x00
	MarkerCompressed byte = 0x01
)

const (
	maxFrameSize  = 1 << 20
	maxNameLen    = 16
	maxChatLen    = 200
	maxIDLen      = 64
	minViewport   = 200
	maxViewport   = 4000
	defaultCutoff = 512
)

var (
	ErrMalformed     = errors.New("malformed message")
	ErrUnknownType   = errors.New("unknown message type")
	ErrUnknownAction = errors.New("unknown action")
)

// Format selects the body encoding of a connection
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

// ParseFormat maps a query value to a Format, defaulting to JSON
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "msgpack") {
		return FormatMsgpack
	}
	return FormatJSON
}

// Codec turns messages into frames and back. A frame is one marker byte
// followed by the body, gzip-compressed when the marker says so.
type Codec struct {
	Format    Format
	Compress  bool
	Threshold int // bodies at or below this size are sent raw
	Now       func() time.Time
}

// NewCodec returns a codec with the default compression cutoff
func NewCodec(format Format, compress bool) *Codec {
	return &Codec{Format: format, Compress: compress, Threshold: defaultCutoff, Now: time.Now}
}

var gzipWriters = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// Timestamp converts t to wire seconds
func Timestamp(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// Encode stamps msg with its type and, if unset, the current time, then frames it
func (c *Codec) Encode(msg ServerMessage) ([]byte, error) {
	h := msg.header()
	h.Type = msg.MessageType()
	if h.Timestamp == 0 {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		h.Timestamp = Timestamp(now())
	}
	body, err := c.marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", h.Type, err)
	}
	if !c.Compress || len(body) <= c.Threshold {
		return append([]byte{MarkerRaw}, body...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(MarkerCompressed)
	zw := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(zw)
	zw.Reset(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compress %s: %w", h.Type, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress %s: %w", h.Type, err)
	}
	return buf.Bytes(), nil
}

// Unframe strips the marker and decompresses the body if needed
func Unframe(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrMalformed
	}
	switch frame[0] {
	case MarkerRaw:
		return frame[1:], nil
	case MarkerCompressed:
		zr, err := gzip.NewReader(bytes.NewReader(frame[1:]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		defer zr.Close()
		body, err := io.ReadAll(io.LimitReader(zr, maxFrameSize+1))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(body) > maxFrameSize {
			return nil, fmt.Errorf("%w: frame too large", ErrMalformed)
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: unknown marker 0x%02x", ErrMalformed, frame[0])
}

// DecodeClient parses an inbound message. Text frames are plain JSON; binary
// frames carry a marker and a body in the codec's format. Unknown tags and
// invalid payloads are rejected here, never at dispatch.
func (c *Codec) DecodeClient(data []byte, binary bool) (ClientMessage, error) {
	format := FormatJSON
	body := data
	if binary {
		var err error
		if body, err = Unframe(data); err != nil {
			return nil, err
		}
		format = c.Format
	}

	var probe Header
	if err := unmarshal(format, body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg ClientMessage
	switch probe.Type {
	case TypeJoin:
		msg = &Join{}
	case TypeInput:
		msg = &Input{}
	case TypeAction:
		msg = &Action{}
	case TypeChat:
		msg = &Chat{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}
	if err := unmarshal(format, body, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func validate(msg ClientMessage) error {
	switch m := msg.(type) {
	case *Join:
		m.PlayerName = strings.TrimSpace(m.PlayerName)
		if len(m.PlayerID) > maxIDLen {
			return fmt.Errorf("%w: player_id too long", ErrMalformed)
		}
		if r := []rune(m.PlayerName); len(r) > maxNameLen {
			m.PlayerName = string(r[:maxNameLen])
		}
		if m.Viewport != 0 {
			m.Viewport = min(max(m.Viewport, minViewport), maxViewport)
		}
		m.Code = strings.ToUpper(strings.TrimSpace(m.Code))
	case *Input:
		if !finite(m.DirX) || !finite(m.DirY) {
			return fmt.Errorf("%w: direction must be finite", ErrMalformed)
		}
	case *Action:
		if !m.Kind.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownAction, m.Kind)
		}
	case *Chat:
		m.Text = strings.TrimSpace(m.Text)
		if m.Text == "" {
			return fmt.Errorf("%w: empty chat", ErrMalformed)
		}
		if r := []rune(m.Text); len(r) > maxChatLen {
			m.Text = string(r[:maxChatLen])
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// DecodeServer parses a server frame; used by headless clients and tests
func (c *Codec) DecodeServer(frame []byte) (ServerMessage, error) {
	body, err := Unframe(frame)
	if err != nil {
		return nil, err
	}
	var probe struct {
		Header
		IsDelta bool `json:"is_delta"`
	}
	if err := unmarshal(c.Format, body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg ServerMessage
	switch probe.Type {
	case TypeInit:
		msg = &Init{}
	case TypeState:
		if probe.IsDelta {
			msg = &StateDelta{}
		} else {
			msg = &StateFull{}
		}
	case TypeLeaderboard:
		msg = &Leaderboard{}
	case TypeKillFeedEntry:
		msg = &KillFeedEntry{}
	case TypeChatBroadcast:
		msg = &ChatBroadcast{}
	case TypeError:
		msg = &Error{}
	case TypeMatchEnd:
		msg = &MatchEnd{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}
	if err := unmarshal(c.Format, body, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// EncodeClient frames a client message; used by headless clients and tests
func (c *Codec) EncodeClient(msg ClientMessage) ([]byte, error) {
	h := msg.header()
	h.Type = msg.MessageType()
	if h.Timestamp == 0 {
		h.Timestamp = Timestamp(time.Now())
	}
	body, err := c.marshal(msg)
	if err != nil {
		return nil, err
	}
	return append([]byte{MarkerRaw}, body...), nil
}

func (c *Codec) marshal(v any) ([]byte, error) {
	if c.Format == FormatMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		enc.UseCompactInts(true)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.Marshal(v)
}

func unmarshal(format Format, body []byte, v any) error {
	if format == FormatMsgpack {
		dec := msgpack.NewDecoder(bytes.NewReader(body))
		dec.SetCustomStructTag("json")
		return dec.Decode(v)
	}
	return json.Unmarshal(body, v)
}
