// Package syncer pulls server-side state into the chat store over the
// REST API: offline messages after a connect, per-thread history on
// demand, and the contact and group directories at startup.
package syncer

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/chat"
	"github.com/tbaldin/wirechat/internal/rest"
	"github.com/tbaldin/wirechat/internal/wire"
)

type Loader struct {
	rest   *rest.Client
	store  *chat.Store
	logger *zap.Logger
}

func NewLoader(rc *rest.Client, store *chat.Store, logger *zap.Logger) *Loader {
	return &Loader{rest: rc, store: store, logger: logger}
}

// LoadOfflineMessages ingests everything that arrived while the
// session was down, then acknowledges it so the server stops replaying
// it. Both halves are best-effort; a failed acknowledgement only means
// redelivery, which the store's duplicate check absorbs.
func (l *Loader) LoadOfflineMessages(ctx context.Context) error {
	dtos, err := l.rest.GetOfflineMessages(ctx)
	if err != nil {
		l.logger.Warn("offline message fetch failed", zap.Error(err))
		return err
	}
	if len(dtos) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(dtos))
	for _, dto := range dtos {
		l.store.AddMessage(toStoreMessage(dto))
		ids = append(ids, dto.ID)
	}
	l.logger.Info("loaded offline messages", zap.Int("count", len(ids)))

	if err := l.rest.MarkOfflineMessagesAsRead(ctx, ids); err != nil {
		l.logger.Warn("offline message acknowledgement failed", zap.Error(err))
	}
	return nil
}

// LoadChatHistory backfills the private thread with one peer.
func (l *Loader) LoadChatHistory(ctx context.Context, peerID int64) error {
	dtos, err := l.rest.GetChatHistory(ctx, peerID)
	if err != nil {
		return err
	}
	convID := chat.PrivateConversationID(l.store.LocalUserID(), peerID)
	l.store.Backfill(convID, toStoreMessages(dtos))
	l.logger.Debug("backfilled private history",
		zap.String("conversation", convID),
		zap.Int("count", len(dtos)))
	return nil
}

// LoadGroupMessages backfills one group thread.
func (l *Loader) LoadGroupMessages(ctx context.Context, groupID int64) error {
	dtos, err := l.rest.GetGroupMessages(ctx, groupID)
	if err != nil {
		return err
	}
	convID := chat.GroupConversationID(groupID)
	l.store.Backfill(convID, toStoreMessages(dtos))
	l.logger.Debug("backfilled group history",
		zap.String("conversation", convID),
		zap.Int("count", len(dtos)))
	return nil
}

// LoadContacts refreshes the contact directory.
func (l *Loader) LoadContacts(ctx context.Context) error {
	users, err := l.rest.GetContacts(ctx)
	if err != nil {
		return err
	}
	contacts := make([]chat.Contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, chat.Contact{
			UserID:    u.ID,
			Username:  u.Username,
			Nickname:  u.Nickname,
			Avatar:    u.Avatar,
			Signature: u.Signature,
			Online:    u.Status == "online",
		})
	}
	l.store.SetContacts(contacts)
	return nil
}

// LoadUserGroups refreshes the group directory.
func (l *Loader) LoadUserGroups(ctx context.Context) error {
	dtos, err := l.rest.GetUserGroups(ctx)
	if err != nil {
		return err
	}
	groups := make([]chat.Group, 0, len(dtos))
	for _, g := range dtos {
		groups = append(groups, chat.Group{
			GroupID:   g.ID,
			Name:      g.Name,
			OwnerID:   g.OwnerID,
			Avatar:    g.Avatar,
			Notice:    g.Notice,
			MemberIDs: g.MemberIDs,
		})
	}
	l.store.SetGroups(groups)
	return nil
}

// Bootstrap loads the contact and group directories. Offline messages
// are not fetched here; they load off the post-connect hook. Failures
// are logged and tolerated; the session stays usable on realtime
// traffic alone.
func (l *Loader) Bootstrap(ctx context.Context) {
	if err := l.LoadContacts(ctx); err != nil {
		l.logger.Warn("contact load failed", zap.Error(err))
	}
	if err := l.LoadUserGroups(ctx); err != nil {
		l.logger.Warn("group load failed", zap.Error(err))
	}
}

func toStoreMessages(dtos []rest.MessageDTO) []chat.Message {
	out := make([]chat.Message, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, toStoreMessage(dto))
	}
	return out
}

func toStoreMessage(dto rest.MessageDTO) chat.Message {
	m := dto.ToWire()
	return chat.Message{
		ID:         strconv.FormatInt(m.ID, 10),
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
		GroupID:    m.GroupID,
		Content:    m.Content,
		Type:       wire.KindFromCode(m.MessageType),
		Status:     chat.StatusSent,
		CreateTime: m.CreateTime,
		IsRecalled: m.IsRecalled,
	}
}
