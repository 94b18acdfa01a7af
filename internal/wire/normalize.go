package wire

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Message type codes used on the wire.
const (
	CodeText   = 1
	CodeImage  = 2
	CodeFile   = 3
	CodeSystem = 6
)

// KindFromCode maps a numeric wire message type to its kind name.
// Unknown codes degrade to text.
func KindFromCode(code int) string {
	switch code {
	case CodeImage:
		return "image"
	case CodeFile:
		return "file"
	case CodeSystem:
		return "system"
	default:
		return "text"
	}
}

// UnixMilli tolerates the two timestamp encodings observed from the
// server: a unix-milliseconds number or an ISO-ish datetime string.
type UnixMilli int64

func (u *UnixMilli) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*u = 0
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*u = UnixMilli(ms)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, str); err == nil {
			*u = UnixMilli(t.UnixMilli())
			return nil
		}
	}
	*u = 0
	return nil
}

// chatBody is the superset of fields a chat payload may carry, covering
// both server formats and both receiver-id spellings.
type chatBody struct {
	ID          int64     `json:"id"`
	FromUserID  int64     `json:"fromUserId"`
	SenderID    int64     `json:"senderId"`
	ToUserID    int64     `json:"toUserId"`
	ReceiverID  int64     `json:"receiverId"`
	GroupID     int64     `json:"groupId"`
	Content     string    `json:"content"`
	MessageType int       `json:"messageType"`
	CreateTime  UnixMilli `json:"createTime"`
	SendTime    UnixMilli `json:"sendTime"`
	IsRecalled  bool      `json:"isRecalled"`
}

// chatEnvelope accepts a flat chat payload or one nested under a
// "message" key; both shapes have been observed from the server.
type chatEnvelope struct {
	chatBody
	Message *chatBody `json:"message"`
}

// ChatMessage is a chat payload after normalization. Zero-valued ids
// mean the field could not be resolved from either shape.
type ChatMessage struct {
	ID          int64
	FromUserID  int64
	ToUserID    int64
	GroupID     int64
	Content     string
	MessageType int
	CreateTime  int64
	IsRecalled  bool
}

// ChatMessage normalizes a private or group frame. Flat fields win;
// missing ones are taken from the nested message, field by field, the
// way the web client resolved the two formats. ErrMissingContent is
// returned when neither shape carries content.
func (f *Frame) ChatMessage() (*ChatMessage, error) {
	var env chatEnvelope
	if err := f.decode(&env); err != nil {
		return nil, err
	}

	m := ChatMessage{
		ID:          env.ID,
		FromUserID:  pick(env.FromUserID, env.SenderID),
		ToUserID:    pick(env.ToUserID, env.ReceiverID),
		GroupID:     env.GroupID,
		Content:     env.Content,
		MessageType: env.MessageType,
		CreateTime:  int64(pickT(env.CreateTime, env.SendTime)),
		IsRecalled:  env.IsRecalled,
	}
	if n := env.Message; n != nil {
		if m.ID == 0 {
			m.ID = n.ID
		}
		if m.FromUserID == 0 {
			m.FromUserID = pick(n.FromUserID, n.SenderID)
		}
		if m.ToUserID == 0 {
			m.ToUserID = pick(n.ToUserID, n.ReceiverID)
		}
		if m.GroupID == 0 {
			m.GroupID = n.GroupID
		}
		if m.Content == "" {
			m.Content = n.Content
		}
		if m.MessageType == 0 {
			m.MessageType = n.MessageType
		}
		if m.CreateTime == 0 {
			m.CreateTime = int64(pickT(n.CreateTime, n.SendTime))
		}
		if !m.IsRecalled {
			m.IsRecalled = n.IsRecalled
		}
	}

	if m.Content == "" {
		return nil, ErrMissingContent
	}
	if m.MessageType == 0 {
		m.MessageType = CodeText
	}
	if m.CreateTime == 0 {
		m.CreateTime = time.Now().UnixMilli()
	}
	return &m, nil
}

func pick(a, b int64) int64 {
	if a != 0 {
		return a
	}
	return b
}

func pickT(a, b UnixMilli) UnixMilli {
	if a != 0 {
		return a
	}
	return b
}

// Typing is the payload of a typing indicator frame.
type Typing struct {
	FromUserID int64 `json:"fromUserId"`
	ToUserID   int64 `json:"toUserId"`
	IsTyping   bool  `json:"isTyping"`
}

func (f *Frame) Typing() (*Typing, error) {
	var t Typing
	if err := f.decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReadReceipt is the payload of a read receipt frame.
type ReadReceipt struct {
	MessageID int64     `json:"messageId"`
	ReadTime  UnixMilli `json:"readTime"`
}

func (f *Frame) ReadReceipt() (*ReadReceipt, error) {
	var r ReadReceipt
	if err := f.decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// OnlineUsers is the payload of an online user roster frame.
type OnlineUsers struct {
	UserIDs []int64 `json:"userIds"`
}

func (f *Frame) OnlineUsers() (*OnlineUsers, error) {
	var o OnlineUsers
	if err := f.decode(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Notice is the payload of a system or error frame.
type Notice struct {
	Content string `json:"content"`
	Message string `json:"message"`
}

// Text returns whichever of content/message the server filled.
func (n *Notice) Text() string {
	if n.Content != "" {
		return n.Content
	}
	return n.Message
}

func (f *Frame) Notice() (*Notice, error) {
	var n Notice
	if err := f.decode(&n); err != nil {
		return nil, err
	}
	return &n, nil
}
