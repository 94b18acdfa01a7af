package app

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/chat"
	"github.com/tbaldin/wirechat/internal/creds"
	"github.com/tbaldin/wirechat/internal/rest"
	"github.com/tbaldin/wirechat/internal/session"
	"github.com/tbaldin/wirechat/internal/syncer"
	"github.com/tbaldin/wirechat/internal/wire"
)

// Client is the high-level facade the frontends drive. It pairs the
// optimistic store write with the realtime send so the message shows
// up immediately with a "sending" status and reconciles against the
// server echo.
type Client struct {
	creds   *creds.Store
	rest    *rest.Client
	store   *chat.Store
	session *session.Manager
	loader  *syncer.Loader
	logger  *zap.Logger
}

func NewClient(cs *creds.Store, rc *rest.Client, store *chat.Store, mgr *session.Manager, loader *syncer.Loader, logger *zap.Logger) *Client {
	return &Client{
		creds:   cs,
		rest:    rc,
		store:   store,
		session: mgr,
		loader:  loader,
		logger:  logger,
	}
}

// Login authenticates, persists the credential record, and brings the
// realtime session up.
func (c *Client) Login(ctx context.Context, username, password string) error {
	res, err := c.rest.Login(ctx, username, password)
	if err != nil {
		return err
	}
	rec := &creds.Record{
		UserID:       res.User.ID,
		Username:     res.User.Username,
		Nickname:     res.User.Nickname,
		Email:        res.User.Email,
		Avatar:       res.User.Avatar,
		Signature:    res.User.Signature,
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		SavedAt:      time.Now().UnixMilli(),
	}
	if err := c.creds.Save(rec); err != nil {
		return err
	}
	c.store.SetLocalUser(rec.UserID)
	c.logger.Info("logged in", zap.String("username", rec.Username), zap.Int64("user_id", rec.UserID))

	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	c.loader.Bootstrap(ctx)
	return nil
}

// Logout tears the session down and wipes local state.
func (c *Client) Logout() error {
	c.session.Disconnect()
	c.store.Reset()
	return c.creds.Clear()
}

// Refresh exchanges the stored refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context) error {
	rec := c.creds.Current()
	if rec == nil || rec.RefreshToken == "" {
		return session.ErrAuthMissing
	}
	res, err := c.rest.RefreshToken(ctx, rec.RefreshToken)
	if err != nil {
		return err
	}
	rec.Token = res.Token
	rec.RefreshToken = res.RefreshToken
	rec.SavedAt = time.Now().UnixMilli()
	return c.creds.Save(rec)
}

// SendPrivate performs an optimistic private send: the message lands
// in the store as "sending" before the frame goes out.
func (c *Client) SendPrivate(toUserID int64, content string) (chat.Message, error) {
	m := c.store.AddOutgoing(chat.Message{ToUserID: toUserID, Content: content})
	if err := c.session.SendPrivateMessage(toUserID, content, wire.CodeText); err != nil {
		return m, err
	}
	return m, nil
}

// SendGroup performs an optimistic group send.
func (c *Client) SendGroup(groupID int64, content string) (chat.Message, error) {
	m := c.store.AddOutgoing(chat.Message{GroupID: groupID, Content: content})
	if err := c.session.SendGroupMessage(groupID, content, wire.CodeText); err != nil {
		return m, err
	}
	return m, nil
}

// OpenConversation makes a thread active, clears its unread counter,
// and backfills its history.
func (c *Client) OpenConversation(ctx context.Context, conversationID string) error {
	c.store.SetActive(conversationID)
	for _, conv := range c.store.SortedConversations() {
		if conv.ID != conversationID {
			continue
		}
		if conv.Type == chat.ConversationGroup {
			return c.loader.LoadGroupMessages(ctx, conv.GroupID)
		}
		for _, id := range conv.ParticipantIDs {
			if id != c.store.LocalUserID() {
				return c.loader.LoadChatHistory(ctx, id)
			}
		}
	}
	return nil
}

// StartPrivateChat opens (creating if needed) the thread with a peer.
func (c *Client) StartPrivateChat(ctx context.Context, peerID int64) (string, error) {
	id := c.store.StartConversation(peerID)
	c.store.SetActive(id)
	return id, c.loader.LoadChatHistory(ctx, peerID)
}

// NotifyTyping reports the local user's typing state to a peer.
func (c *Client) NotifyTyping(toUserID int64, typing bool) error {
	return c.session.SendTyping(toUserID, typing)
}

// MarkRead acknowledges a message as read, locally and to the server.
func (c *Client) MarkRead(messageID int64) error {
	c.store.MarkMessageRead(strconv.FormatInt(messageID, 10), time.Now().UnixMilli())
	return c.session.SendReadReceipt(messageID)
}

// Conversations returns the thread list, newest first.
func (c *Client) Conversations() []chat.Conversation {
	return c.store.SortedConversations()
}

// Messages returns one thread's messages in order.
func (c *Client) Messages(conversationID string) []chat.Message {
	return c.store.Messages(conversationID)
}

// Status reports the realtime connection state.
func (c *Client) Status() session.Status {
	return c.session.Status()
}
