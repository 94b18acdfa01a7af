// Package chat keeps the in-memory conversation state: messages per
// thread, unread counters, presence, and the optimistic-send
// reconciliation that replaces a locally appended "sending" message
// with its server echo instead of duplicating it.
package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/bus"
)

// Store holds all conversation state for one session. All methods are
// safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	bus    *bus.Bus
	logger *zap.Logger

	localUserID     int64
	reconcileWindow time.Duration

	conversations map[string]*Conversation
	messages      map[string][]Message
	activeID      string

	contacts []Contact
	groups   []Group
	online   map[int64]bool
	typing   map[string]bool

	now func() time.Time
}

// NewStore creates an empty store. reconcileWindow bounds how far an
// optimistic message's timestamp may lag its server echo and still be
// treated as the same message.
func NewStore(b *bus.Bus, logger *zap.Logger, reconcileWindow time.Duration) *Store {
	return &Store{
		bus:             b,
		logger:          logger,
		reconcileWindow: reconcileWindow,
		conversations:   make(map[string]*Conversation),
		messages:        make(map[string][]Message),
		online:          make(map[int64]bool),
		typing:          make(map[string]bool),
		now:             time.Now,
	}
}

// SetLocalUser records the authenticated user's id. Unread accounting
// and conversation derivation need it before any message is added.
func (s *Store) SetLocalUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localUserID = id
}

// LocalUserID returns the authenticated user's id, 0 if unset.
func (s *Store) LocalUserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localUserID
}

// ConversationIDFor derives the thread id for an incoming message.
func (s *Store) ConversationIDFor(m Message) string {
	if m.GroupID != 0 {
		return GroupConversationID(m.GroupID)
	}
	peer := m.FromUserID
	if peer == s.LocalUserID() {
		peer = m.ToUserID
	}
	return PrivateConversationID(s.LocalUserID(), peer)
}

// AddOutgoing appends an optimistic copy of a message the session is
// about to send. It returns the stored message with its temp id.
func (s *Store) AddOutgoing(m Message) Message {
	m.ID = "temp-" + uuid.New().String()
	m.Status = StatusSending
	if m.CreateTime == 0 {
		m.CreateTime = s.now().UnixMilli()
	}
	if m.Type == "" {
		m.Type = "text"
	}
	s.mu.Lock()
	m.FromUserID = s.localUserID
	convID := s.conversationIDLocked(m)
	conv := s.ensureConversationLocked(convID, m)
	s.messages[convID] = append(s.messages[convID], m)
	s.touchLocked(conv, m)
	s.mu.Unlock()

	s.bus.Publish(bus.Event{Kind: bus.KindMessageAdded, Timestamp: time.Now(), Payload: m})
	return m
}

// AddMessage folds one message into its conversation. Duplicates by id
// are dropped; a server echo matching a pending optimistic message
// replaces it in place; everything else appends. Unread counters move
// only for messages from other users landing in an inactive thread.
func (s *Store) AddMessage(m Message) {
	if m.Status == "" {
		m.Status = StatusSent
	}
	if m.Type == "" {
		m.Type = "text"
	}

	s.mu.Lock()
	convID := s.conversationIDLocked(m)
	conv := s.ensureConversationLocked(convID, m)
	msgs := s.messages[convID]

	for i, existing := range msgs {
		if existing.ID != m.ID {
			continue
		}
		// a re-delivery may carry a recall the first copy did not
		if m.IsRecalled && !existing.IsRecalled {
			msgs[i].IsRecalled = true
			s.messages[convID] = msgs
			s.mu.Unlock()
			s.bus.Publish(bus.Event{Kind: bus.KindMessageReconciled, Timestamp: time.Now(), Payload: msgs[i]})
			return
		}
		s.mu.Unlock()
		s.logger.Debug("dropping duplicate message",
			zap.String("conversation", convID),
			zap.String("id", m.ID))
		return
	}

	if idx := s.reconcileIndexLocked(msgs, m); idx >= 0 {
		old := msgs[idx]
		// the echo confirms delivery, not just submission
		if m.Status == StatusSent {
			m.Status = StatusDelivered
		}
		msgs[idx] = m
		s.messages[convID] = msgs
		s.touchLocked(conv, m)
		s.mu.Unlock()
		s.bus.Publish(bus.Event{Kind: bus.KindMessageReconciled, Timestamp: time.Now(), Payload: m})
		s.logger.Debug("reconciled optimistic message",
			zap.String("conversation", convID),
			zap.String("temp_id", old.ID),
			zap.String("id", m.ID))
		return
	}

	s.messages[convID] = append(msgs, m)
	s.touchLocked(conv, m)
	if m.FromUserID != s.localUserID && s.activeID != convID {
		conv.UnreadCount++
	}
	s.mu.Unlock()

	s.bus.Publish(bus.Event{Kind: bus.KindMessageAdded, Timestamp: time.Now(), Payload: m})
}

// reconcileIndexLocked finds a pending optimistic message the incoming
// one is the echo of: still sending, same sender and content, and sent
// within the reconcile window.
func (s *Store) reconcileIndexLocked(msgs []Message, m Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		e := msgs[i]
		if e.Status != StatusSending {
			continue
		}
		if e.FromUserID != m.FromUserID || e.Content != m.Content {
			continue
		}
		delta := m.CreateTime - e.CreateTime
		if delta < 0 {
			delta = -delta
		}
		if time.Duration(delta)*time.Millisecond < s.reconcileWindow {
			return i
		}
	}
	return -1
}

func (s *Store) conversationIDLocked(m Message) string {
	if m.GroupID != 0 {
		return GroupConversationID(m.GroupID)
	}
	peer := m.FromUserID
	if peer == s.localUserID {
		peer = m.ToUserID
	}
	return PrivateConversationID(s.localUserID, peer)
}

func (s *Store) ensureConversationLocked(id string, m Message) *Conversation {
	if conv, ok := s.conversations[id]; ok {
		return conv
	}
	conv := &Conversation{ID: id}
	if m.GroupID != 0 {
		conv.Type = ConversationGroup
		conv.GroupID = m.GroupID
		conv.ParticipantIDs = []int64{s.localUserID}
	} else {
		conv.Type = ConversationPrivate
		peer := m.FromUserID
		if peer == s.localUserID {
			peer = m.ToUserID
		}
		conv.ParticipantIDs = []int64{s.localUserID, peer}
	}
	s.conversations[id] = conv
	return conv
}

func (s *Store) touchLocked(conv *Conversation, m Message) {
	if m.CreateTime >= conv.Timestamp {
		conv.Timestamp = m.CreateTime
		conv.LastMessage = m.Content
	}
}

// StartConversation ensures a private thread with peer exists and
// returns its id. Used when the user opens a chat before any message
// has flowed.
func (s *Store) StartConversation(peerID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := PrivateConversationID(s.localUserID, peerID)
	if _, ok := s.conversations[id]; !ok {
		s.conversations[id] = &Conversation{
			ID:             id,
			Type:           ConversationPrivate,
			ParticipantIDs: []int64{s.localUserID, peerID},
		}
	}
	return id
}

// SetActive marks one conversation as the one on screen and clears its
// unread counter. An empty id deactivates all threads.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	s.activeID = id
	var updated *Conversation
	if conv, ok := s.conversations[id]; ok && conv.UnreadCount != 0 {
		conv.UnreadCount = 0
		c := *conv
		updated = &c
	}
	s.mu.Unlock()

	if updated != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindConversationUpdated, Timestamp: time.Now(), Payload: *updated})
	}
}

// ActiveConversation returns the id set by SetActive.
func (s *Store) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// MarkMessageRead applies a read receipt to the message with the given
// server id, wherever it lives.
func (s *Store) MarkMessageRead(messageID string, readTime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for convID, msgs := range s.messages {
		for i := range msgs {
			if msgs[i].ID == messageID {
				msgs[i].Status = StatusRead
				msgs[i].ReadTime = readTime
				s.messages[convID] = msgs
				return
			}
		}
	}
}

// SetTyping records the peer's typing state for one conversation.
func (s *Store) SetTyping(conversationID string, typing bool) {
	s.mu.Lock()
	changed := s.typing[conversationID] != typing
	if typing {
		s.typing[conversationID] = true
	} else {
		delete(s.typing, conversationID)
	}
	s.mu.Unlock()

	if changed {
		s.bus.Publish(bus.Event{Kind: bus.KindTypingChanged, Timestamp: time.Now(), Payload: conversationID})
	}
}

// IsTyping reports whether the peer in a conversation is typing.
func (s *Store) IsTyping(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing[conversationID]
}

// UpdateOnlineUsers replaces the online roster and refreshes the
// presence flag on the contact list.
func (s *Store) UpdateOnlineUsers(ids []int64) {
	s.mu.Lock()
	s.online = make(map[int64]bool, len(ids))
	for _, id := range ids {
		s.online[id] = true
	}
	for i := range s.contacts {
		s.contacts[i].Online = s.online[s.contacts[i].UserID]
	}
	s.mu.Unlock()

	s.bus.Publish(bus.Event{Kind: bus.KindPresenceChanged, Timestamp: time.Now(), Payload: ids})
}

// IsOnline reports whether a user was in the last roster push.
func (s *Store) IsOnline(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online[userID]
}

// SetContacts replaces the contact list.
func (s *Store) SetContacts(contacts []Contact) {
	s.mu.Lock()
	s.contacts = contacts
	s.mu.Unlock()
}

// Contacts returns a copy of the contact list.
func (s *Store) Contacts() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Contact, len(s.contacts))
	copy(out, s.contacts)
	return out
}

// SetGroups replaces the group list and ensures each group has a
// conversation so it shows up before its first message.
func (s *Store) SetGroups(groups []Group) {
	s.mu.Lock()
	s.groups = groups
	for _, g := range groups {
		id := GroupConversationID(g.GroupID)
		if conv, ok := s.conversations[id]; ok {
			conv.Name = g.Name
			continue
		}
		s.conversations[id] = &Conversation{
			ID:             id,
			Type:           ConversationGroup,
			Name:           g.Name,
			GroupID:        g.GroupID,
			ParticipantIDs: []int64{s.localUserID},
		}
	}
	s.mu.Unlock()
}

// Groups returns a copy of the group list.
func (s *Store) Groups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Group, len(s.groups))
	copy(out, s.groups)
	return out
}

// Backfill merges history messages into a conversation without
// touching unread counters, then re-sorts by creation time. Messages
// already present by id are skipped.
func (s *Store) Backfill(conversationID string, history []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.messages[conversationID]
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[m.ID] = true
	}

	var conv *Conversation
	for _, m := range history {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if m.Status == "" {
			m.Status = StatusSent
		}
		if m.Type == "" {
			m.Type = "text"
		}
		if conv == nil {
			conv = s.ensureConversationLocked(conversationID, m)
		}
		existing = append(existing, m)
		s.touchLocked(conv, m)
	}
	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].CreateTime < existing[j].CreateTime
	})
	s.messages[conversationID] = existing
}

// Messages returns a copy of one conversation's messages in order.
func (s *Store) Messages(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// SortedConversations returns the thread list, newest first. A thread
// is listed when it has messages, is the active one, or carries unread
// messages; empty shells stay hidden.
func (s *Store) SortedConversations() []Conversation {
	s.mu.RLock()
	out := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if len(s.messages[conv.ID]) == 0 && conv.ID != s.activeID && conv.UnreadCount == 0 {
			continue
		}
		out = append(out, *conv)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// Reset drops all state. Used on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localUserID = 0
	s.activeID = ""
	s.conversations = make(map[string]*Conversation)
	s.messages = make(map[string][]Message)
	s.contacts = nil
	s.groups = nil
	s.online = make(map[int64]bool)
	s.typing = make(map[string]bool)
}
