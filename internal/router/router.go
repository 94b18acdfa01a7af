// Package router turns raw websocket frames into store mutations.
// Parsing failures and frames for other sessions are dropped here so
// upper layers only ever see well-formed, locally relevant traffic.
package router

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/bus"
	"github.com/tbaldin/wirechat/internal/chat"
	"github.com/tbaldin/wirechat/internal/wire"
)

// UserSource exposes the authenticated user's id. The router uses it
// to reject private frames addressed to someone else.
type UserSource interface {
	UserID() int64
}

type Router struct {
	store  *chat.Store
	users  UserSource
	bus    *bus.Bus
	logger *zap.Logger
}

func New(store *chat.Store, users UserSource, b *bus.Bus, logger *zap.Logger) *Router {
	return &Router{store: store, users: users, bus: b, logger: logger}
}

// HandleRaw parses one frame and dispatches it. The parsed frame is
// returned so the session can fan it out to raw-message listeners; a
// nil frame with nil error means the payload was dropped on purpose.
func (r *Router) HandleRaw(data []byte) (*wire.Frame, error) {
	frame, err := wire.Parse(data)
	if err != nil {
		r.logger.Warn("dropping unparseable frame", zap.Error(err), zap.Int("bytes", len(data)))
		return nil, err
	}
	r.Dispatch(frame)
	return frame, nil
}

// Dispatch routes one parsed frame by type.
func (r *Router) Dispatch(frame *wire.Frame) {
	switch frame.Type {
	case wire.TypeConnection:
		r.logger.Info("connection acknowledged by server")

	case wire.TypePrivate:
		r.handlePrivate(frame)

	case wire.TypeGroup:
		r.handleGroup(frame)

	case wire.TypeTyping:
		r.handleTyping(frame)

	case wire.TypeReadReceipt:
		r.handleReadReceipt(frame)

	case wire.TypeOnlineUsers:
		r.handleOnlineUsers(frame)

	case wire.TypeSystem:
		r.handleSystem(frame)

	case wire.TypeHeartbeat:
		// server-side heartbeat echo, nothing to do

	case wire.TypeError:
		notice, err := frame.Notice()
		if err != nil {
			r.logger.Error("server error frame", zap.ByteString("frame", frame.Raw()))
			return
		}
		r.logger.Error("server error", zap.String("message", notice.Text()))

	default:
		r.logger.Warn("dropping frame of unknown type", zap.String("type", string(frame.Type)))
	}
}

func (r *Router) handlePrivate(frame *wire.Frame) {
	m, err := frame.ChatMessage()
	if err != nil {
		r.logger.Warn("malformed private frame", zap.Error(err))
		return
	}
	local := r.users.UserID()
	if m.ToUserID == 0 {
		r.logger.Warn("dropping private frame without receiver", zap.Int64("id", m.ID))
		return
	}
	// A frame whose receiver is another user means the server routed a
	// session boundary wrong; never let it into the local store.
	if m.ToUserID != local && m.FromUserID != local {
		r.logger.Warn("dropping private message for another session",
			zap.Int64("to", m.ToUserID),
			zap.Int64("local", local))
		return
	}
	r.store.AddMessage(toStoreMessage(m))
}

func (r *Router) handleGroup(frame *wire.Frame) {
	m, err := frame.ChatMessage()
	if err != nil {
		r.logger.Warn("malformed group frame", zap.Error(err))
		return
	}
	if m.GroupID == 0 {
		r.logger.Warn("dropping group frame without group id", zap.Int64("id", m.ID))
		return
	}
	r.store.AddMessage(toStoreMessage(m))
}

func (r *Router) handleTyping(frame *wire.Frame) {
	typing, err := frame.Typing()
	if err != nil {
		r.logger.Warn("malformed typing frame", zap.Error(err))
		return
	}
	convID := chat.PrivateConversationID(r.users.UserID(), typing.FromUserID)
	r.store.SetTyping(convID, typing.IsTyping)
}

func (r *Router) handleReadReceipt(frame *wire.Frame) {
	receipt, err := frame.ReadReceipt()
	if err != nil {
		r.logger.Warn("malformed read receipt", zap.Error(err))
		return
	}
	r.store.MarkMessageRead(strconv.FormatInt(receipt.MessageID, 10), int64(receipt.ReadTime))
}

func (r *Router) handleOnlineUsers(frame *wire.Frame) {
	roster, err := frame.OnlineUsers()
	if err != nil {
		r.logger.Warn("malformed online users frame", zap.Error(err))
		return
	}
	r.store.UpdateOnlineUsers(roster.UserIDs)
}

func (r *Router) handleSystem(frame *wire.Frame) {
	notice, err := frame.Notice()
	if err != nil {
		r.logger.Warn("malformed system frame", zap.Error(err))
		return
	}
	r.logger.Info("system notice", zap.String("content", notice.Text()))
	r.bus.Publish(bus.Event{Kind: bus.KindSystemNotice, Payload: notice.Text()})
}

// toStoreMessage converts a normalized wire message into the store's
// shape, including the numeric-to-string id and code-to-kind mapping.
func toStoreMessage(m *wire.ChatMessage) chat.Message {
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
