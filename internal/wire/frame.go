// Package wire defines the JSON frame protocol spoken over the chat
// websocket: a flat object with a "type" discriminant plus per-kind
// payload fields. Inbound frames are normalized here, once, at the
// boundary; nothing downstream re-inspects raw JSON.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameType discriminates inbound and outbound frames.
type FrameType string

const (
	TypeConnection     FrameType = "connection"
	TypePrivate        FrameType = "private"
	TypeGroup          FrameType = "group"
	TypeTyping         FrameType = "typing"
	TypeReadReceipt    FrameType = "read_receipt"
	TypeOnlineUsers    FrameType = "online_users"
	TypeGetOnlineUsers FrameType = "get_online_users"
	TypeSystem         FrameType = "system"
	TypeHeartbeat      FrameType = "heartbeat"
	TypeError          FrameType = "error"
)

var (
	ErrNotJSON        = errors.New("frame is not valid JSON")
	ErrNoType         = errors.New("frame has no type field")
	ErrMissingContent = errors.New("frame has no resolvable content")
)

// Frame is a parsed but not yet normalized inbound frame. The raw bytes
// are retained so each kind can decode its own payload shape.
type Frame struct {
	Type FrameType
	raw  json.RawMessage
}

// Parse decodes raw bytes into a Frame. Only the discriminant is
// examined; payload decoding happens in the typed accessors.
func Parse(data []byte) (*Frame, error) {
	var head struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if head.Type == "" {
		return nil, ErrNoType
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return &Frame{Type: head.Type, raw: raw}, nil
}

// Raw returns the frame's original bytes.
func (f *Frame) Raw() []byte {
	return f.raw
}

func (f *Frame) decode(v any) error {
	if err := json.Unmarshal(f.raw, v); err != nil {
		return fmt.Errorf("decode %s frame: %w", f.Type, err)
	}
	return nil
}
