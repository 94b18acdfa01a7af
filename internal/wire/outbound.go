package wire

// Outbound frame shapes. These marshal to the flat JSON objects the
// server expects; see the corresponding inbound normalization for the
// echo formats.

// PrivateSend is an outbound private chat message.
type PrivateSend struct {
	Type        FrameType `json:"type"`
	ToUserID    int64     `json:"toUserId"`
	Content     string    `json:"content"`
	MessageType int       `json:"messageType"`
}

// NewPrivateSend builds a private message frame.
func NewPrivateSend(toUserID int64, content string, messageType int) PrivateSend {
	return PrivateSend{Type: TypePrivate, ToUserID: toUserID, Content: content, MessageType: messageType}
}

// GroupSend is an outbound group chat message.
type GroupSend struct {
	Type        FrameType `json:"type"`
	GroupID     int64     `json:"groupId"`
	Content     string    `json:"content"`
	MessageType int       `json:"messageType"`
}

// NewGroupSend builds a group message frame.
func NewGroupSend(groupID int64, content string, messageType int) GroupSend {
	return GroupSend{Type: TypeGroup, GroupID: groupID, Content: content, MessageType: messageType}
}

// TypingSend is an outbound typing indicator.
type TypingSend struct {
	Type     FrameType `json:"type"`
	ToUserID int64     `json:"toUserId"`
	IsTyping bool      `json:"isTyping"`
}

// NewTypingSend builds a typing indicator frame.
func NewTypingSend(toUserID int64, isTyping bool) TypingSend {
	return TypingSend{Type: TypeTyping, ToUserID: toUserID, IsTyping: isTyping}
}

// ReadReceiptSend acknowledges that a message was read.
type ReadReceiptSend struct {
	Type      FrameType `json:"type"`
	MessageID int64     `json:"messageId"`
}

// NewReadReceiptSend builds a read receipt frame.
func NewReadReceiptSend(messageID int64) ReadReceiptSend {
	return ReadReceiptSend{Type: TypeReadReceipt, MessageID: messageID}
}

// Bare is a payload-less frame (heartbeat, get_online_users).
type Bare struct {
	Type FrameType `json:"type"`
}

// NewHeartbeat builds a heartbeat frame.
func NewHeartbeat() Bare {
	return Bare{Type: TypeHeartbeat}
}

// NewGetOnlineUsers builds an online roster request frame.
func NewGetOnlineUsers() Bare {
	return Bare{Type: TypeGetOnlineUsers}
}
