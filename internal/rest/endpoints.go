package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tbaldin/wirechat/internal/wire"
)

// LoginRequest carries the credentials for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest carries the fields for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UserDTO is the server's user shape, shared by login and contacts.
type UserDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar"`
	Signature string `json:"signature"`
	Status    string `json:"status"`
}

// LoginResult is the data payload of a successful login or refresh.
type LoginResult struct {
	Token        string  `json:"token"`
	RefreshToken string  `json:"refreshToken"`
	User         UserDTO `json:"user"`
}

// GroupDTO is a group the local user belongs to.
type GroupDTO struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	OwnerID   int64   `json:"ownerId"`
	Avatar    string  `json:"avatar"`
	Notice    string  `json:"notice"`
	MemberIDs []int64 `json:"memberIds"`
}

// MessageDTO is the history/offline message shape. It normalizes the
// same sender/receiver aliases the realtime frames use.
type MessageDTO struct {
	ID          int64          `json:"id"`
	FromUserID  int64          `json:"fromUserId"`
	SenderID    int64          `json:"senderId"`
	ToUserID    int64          `json:"toUserId"`
	ReceiverID  int64          `json:"receiverId"`
	GroupID     int64          `json:"groupId"`
	Content     string         `json:"content"`
	MessageType int            `json:"messageType"`
	CreateTime  wire.UnixMilli `json:"createTime"`
	IsRecalled  bool           `json:"isRecalled"`
}

// ToWire folds the alias fields into the canonical realtime shape.
func (m MessageDTO) ToWire() wire.ChatMessage {
	out := wire.ChatMessage{
		ID:          m.ID,
		FromUserID:  m.FromUserID,
		ToUserID:    m.ToUserID,
		GroupID:     m.GroupID,
		Content:     m.Content,
		MessageType: m.MessageType,
		CreateTime:  int64(m.CreateTime),
		IsRecalled:  m.IsRecalled,
	}
	if out.FromUserID == 0 {
		out.FromUserID = m.SenderID
	}
	if out.ToUserID == 0 {
		out.ToUserID = m.ReceiverID
	}
	if out.MessageType == 0 {
		out.MessageType = wire.CodeText
	}
	return out
}

// Login authenticates and returns the token pair plus user profile.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	return call[LoginResult](ctx, c, http.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password}, nil)
}

// Register creates an account. The server logs the user straight in,
// so the result carries a token pair like Login.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (LoginResult, error) {
	return call[LoginResult](ctx, c, http.MethodPost, "/auth/register", req, nil)
}

// RefreshToken exchanges a refresh token for a fresh pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (LoginResult, error) {
	return call[LoginResult](ctx, c, http.MethodPost, "/auth/refresh", nil, map[string]string{"refreshToken": refreshToken})
}

// CheckUsername reports whether a username is still available.
func (c *Client) CheckUsername(ctx context.Context, username string) (bool, error) {
	return call[bool](ctx, c, http.MethodGet, "/auth/check-username", nil, map[string]string{"username": username})
}

// GetOfflineMessages fetches messages that arrived while disconnected.
func (c *Client) GetOfflineMessages(ctx context.Context) ([]MessageDTO, error) {
	return call[[]MessageDTO](ctx, c, http.MethodGet, "/messages/offline", nil, nil)
}

// MarkOfflineMessagesAsRead acknowledges delivered offline messages so
// the server stops replaying them.
func (c *Client) MarkOfflineMessagesAsRead(ctx context.Context, ids []int64) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodPut, "/messages/offline/mark-read", ids, nil)
	return err
}

// GetChatHistory fetches the private history with one peer.
func (c *Client) GetChatHistory(ctx context.Context, peerID int64) ([]MessageDTO, error) {
	return call[[]MessageDTO](ctx, c, http.MethodGet, "/chat/messages/private", nil, map[string]string{"userId": strconv.FormatInt(peerID, 10)})
}

// GetGroupMessages fetches the history of one group.
func (c *Client) GetGroupMessages(ctx context.Context, groupID int64) ([]MessageDTO, error) {
	return call[[]MessageDTO](ctx, c, http.MethodGet, "/chat/messages/group", nil, map[string]string{"groupId": strconv.FormatInt(groupID, 10)})
}

// GetUserGroups lists the groups the local user belongs to.
func (c *Client) GetUserGroups(ctx context.Context) ([]GroupDTO, error) {
	return call[[]GroupDTO](ctx, c, http.MethodGet, "/group/user-groups", nil, nil)
}

// GetContacts lists the local user's contacts.
func (c *Client) GetContacts(ctx context.Context) ([]UserDTO, error) {
	return call[[]UserDTO](ctx, c, http.MethodGet, "/contacts", nil, nil)
}
