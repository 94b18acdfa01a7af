package router

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/bus"
	"github.com/tbaldin/wirechat/internal/chat"
)

type fixedUser int64

func (u fixedUser) UserID() int64 { return int64(u) }

func newTestRouter(t *testing.T) (*Router, *chat.Store, *bus.Bus) {
	t.Helper()
	b := bus.New()
	store := chat.NewStore(b, zap.NewNop(), 5*time.Second)
	store.SetLocalUser(1)
	return New(store, fixedUser(1), b, zap.NewNop()), store, b
}

func TestPrivateFrameLandsInStore(t *testing.T) {
	r, store, _ := newTestRouter(t)

	frame, err := r.HandleRaw([]byte(`{"type":"private","id":501,"fromUserId":2,"toUserId":1,"content":"hi","createTime":1714550000000}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if frame == nil {
		t.Fatal("expected parsed frame back")
	}

	msgs := store.Messages(chat.PrivateConversationID(1, 2))
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.ID != "501" || m.FromUserID != 2 || m.Content != "hi" || m.Status != chat.StatusSent {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestPrivateFrameForOtherSessionDropped(t *testing.T) {
	r, store, _ := newTestRouter(t)

	if _, err := r.HandleRaw([]byte(`{"type":"private","id":7,"fromUserId":2,"toUserId":3,"content":"leak"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := len(store.SortedConversations()); got != 0 {
		t.Fatalf("cross-session message stored, conversations = %d", got)
	}
}

func TestPrivateFrameWithoutReceiverDropped(t *testing.T) {
	r, store, _ := newTestRouter(t)

	if _, err := r.HandleRaw([]byte(`{"type":"private","id":7,"fromUserId":2,"content":"no receiver"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := len(store.SortedConversations()); got != 0 {
		t.Fatalf("receiverless frame stored, conversations = %d", got)
	}
}

func TestNestedMessageEnvelope(t *testing.T) {
	r, store, _ := newTestRouter(t)

	if _, err := r.HandleRaw([]byte(`{"type":"private","message":{"id":8,"senderId":2,"receiverId":1,"content":"wrapped"}}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	msgs := store.Messages(chat.PrivateConversationID(1, 2))
	if len(msgs) != 1 || msgs[0].Content != "wrapped" {
		t.Fatalf("nested envelope not unwrapped: %+v", msgs)
	}
}

func TestGroupFrameRequiresGroupID(t *testing.T) {
	r, store, _ := newTestRouter(t)

	if _, err := r.HandleRaw([]byte(`{"type":"group","id":9,"fromUserId":2,"content":"no group"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := len(store.SortedConversations()); got != 0 {
		t.Fatalf("group frame without id stored, conversations = %d", got)
	}

	if _, err := r.HandleRaw([]byte(`{"type":"group","id":10,"fromUserId":2,"groupId":9,"content":"ok"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := len(store.Messages(chat.GroupConversationID(9))); got != 1 {
		t.Fatalf("expected group message stored, got %d", got)
	}
}

func TestGarbageFrameReturnsError(t *testing.T) {
	r, store, _ := newTestRouter(t)

	if _, err := r.HandleRaw([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
	if got := len(store.SortedConversations()); got != 0 {
		t.Fatalf("garbage mutated the store, conversations = %d", got)
	}
}

func TestTypingFrameTargetsPairConversation(t *testing.T) {
	r, store, _ := newTestRouter(t)

	if _, err := r.HandleRaw([]byte(`{"type":"typing","fromUserId":2,"toUserId":1,"isTyping":true}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !store.IsTyping(chat.PrivateConversationID(1, 2)) {
		t.Fatal("typing state not set")
	}

	if _, err := r.HandleRaw([]byte(`{"type":"typing","fromUserId":2,"toUserId":1,"isTyping":false}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.IsTyping(chat.PrivateConversationID(1, 2)) {
		t.Fatal("typing state not cleared")
	}
}

func TestReadReceiptMarksMessage(t *testing.T) {
	r, store, _ := newTestRouter(t)
	store.AddMessage(chat.Message{ID: "42", FromUserID: 1, ToUserID: 2, Content: "hey", CreateTime: 1000})

	if _, err := r.HandleRaw([]byte(`{"type":"read_receipt","messageId":42,"readTime":2000}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	msgs := store.Messages(chat.PrivateConversationID(1, 2))
	if msgs[0].Status != chat.StatusRead || msgs[0].ReadTime != 2000 {
		t.Fatalf("receipt not applied: %+v", msgs[0])
	}
}

func TestOnlineUsersFrameReplacesRoster(t *testing.T) {
	r, store, _ := newTestRouter(t)

	if _, err := r.HandleRaw([]byte(`{"type":"online_users","userIds":[2,3]}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !store.IsOnline(2) || !store.IsOnline(3) || store.IsOnline(4) {
		t.Fatal("roster not applied")
	}
}

func TestSystemNoticeOnBus(t *testing.T) {
	r, _, b := newTestRouter(t)
	events, cancel := b.Subscribe("system.", 1)
	defer cancel()

	if _, err := r.HandleRaw([]byte(`{"type":"system","content":"maintenance at noon"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	select {
	case evt := <-events:
		if evt.Payload.(string) != "maintenance at noon" {
			t.Fatalf("payload = %v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no system notice published")
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	r, store, _ := newTestRouter(t)

	frame, err := r.HandleRaw([]byte(`{"type":"video_call","content":"x"}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if frame == nil {
		t.Fatal("unknown frames still parse")
	}
	if got := len(store.SortedConversations()); got != 0 {
		t.Fatalf("unknown frame mutated store, conversations = %d", got)
	}
}
