package bus

import "time"

// Event kinds published by the client core. Subscribers filter by
// namespace prefix, e.g. "chat." receives every chat store change.
const (
	KindStatusChanged       = "session.status_changed"
	KindMessageAdded        = "chat.message_added"
	KindMessageReconciled   = "chat.message_reconciled"
	KindConversationUpdated = "chat.conversation_updated"
	KindPresenceChanged     = "chat.presence_changed"
	KindTypingChanged       = "chat.typing_changed"
	KindSystemNotice        = "system.notice"
)

// Event is a domain event delivered to bus subscribers.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
