package chat

import (
	"fmt"
	"strings"
)

// Message delivery states. Outgoing messages start at StatusSending
// and are promoted to StatusDelivered when the server echo arrives.
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Conversation kinds.
const (
	ConversationPrivate = "private"
	ConversationGroup   = "group"
)

// Message is one chat message as the UI layer sees it. ID is a string
// so optimistic entries can carry a "temp-" id until reconciled.
type Message struct {
	ID         string
	FromUserID int64
	ToUserID   int64
	GroupID    int64
	Content    string
	Type       string // text, image, file, system
	Status     string
	CreateTime int64 // unix millis
	ReadTime   int64
	IsRecalled bool
}

// Conversation is a private or group thread.
type Conversation struct {
	ID             string
	Type           string
	Name           string
	ParticipantIDs []int64
	GroupID        int64
	UnreadCount    int
	Timestamp      int64 // unix millis of the newest message
	LastMessage    string
}

// Contact is a user from the local user's contact list.
type Contact struct {
	UserID    int64
	Username  string
	Nickname  string
	Avatar    string
	Signature string
	Online    bool
}

// Group is a group the local user belongs to.
type Group struct {
	GroupID   int64
	Name      string
	OwnerID   int64
	Avatar    string
	Notice    string
	MemberIDs []int64
}

// PrivateConversationID derives the thread id for a user pair. The id
// depends only on the pair, so both sides and every session compute
// the same value.
func PrivateConversationID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("priv:%d:%d", a, b)
}

// GroupConversationID derives the thread id for a group.
func GroupConversationID(groupID int64) string {
	return fmt.Sprintf("group:%d", groupID)
}

// IsTempID reports whether a message id is a local optimistic id.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, "temp-")
}
