// Package session owns the realtime connection lifecycle: connect,
// heartbeat, the pending-send queue, and linear-backoff reconnection
// after unclean closes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/bus"
	"github.com/tbaldin/wirechat/internal/config"
	"github.com/tbaldin/wirechat/internal/transport"
	"github.com/tbaldin/wirechat/internal/wire"
)

// ErrAuthMissing is returned by Connect when no auth token is
// available. The transport is never opened in that case.
var ErrAuthMissing = errors.New("session: no auth token available")

// TokenSource supplies the current auth token, empty when logged out.
type TokenSource interface {
	Token() string
}

// FrameHandler consumes every raw inbound payload. It returns the
// parsed frame for fan-out, or (nil, err) when the payload was
// dropped.
type FrameHandler interface {
	HandleRaw(data []byte) (*wire.Frame, error)
}

// Transport is the subset of the websocket connection the manager
// drives. Production uses transport.Conn; tests substitute a fake.
type Transport interface {
	Open(ctx context.Context, url string)
	Send(data []byte) error
	IsOpen() bool
	Close()
}

// TransportFactory builds a fresh transport per connection attempt.
type TransportFactory func(cb transport.Callbacks) Transport

// Manager coordinates one user's realtime session.
type Manager struct {
	cfg     config.Session
	baseURL string
	tokens  TokenSource
	handler FrameHandler
	factory TransportFactory
	machine *machine
	logger  *zap.Logger

	mu          sync.Mutex
	conn        Transport
	pending     [][]byte
	attempts    int
	manualClose bool
	hbStop      chan struct{}

	listenerMu      sync.Mutex
	nextListener    int
	msgListeners    map[int]func(*wire.Frame)
	statusListeners map[int]func(Status)

	onReady func()
}

// NewManager wires a manager. onReady, when set via SetOnReady, runs
// once per connection shortly after it opens; the offline backfill
// hangs off it.
func NewManager(cfg config.Session, baseURL string, tokens TokenSource, handler FrameHandler, factory TransportFactory, b *bus.Bus, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:             cfg,
		baseURL:         baseURL,
		tokens:          tokens,
		handler:         handler,
		factory:         factory,
		machine:         newMachine(b),
		logger:          logger,
		msgListeners:    make(map[int]func(*wire.Frame)),
		statusListeners: make(map[int]func(Status)),
	}
	if m.factory == nil {
		m.factory = func(cb transport.Callbacks) Transport {
			return transport.New(cb, logger)
		}
	}
	return m
}

// SetOnReady registers the post-open hook. Must be called before
// Connect.
func (m *Manager) SetOnReady(fn func()) {
	m.onReady = fn
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	return m.machine.Current()
}

// wsURL rewrites the HTTP base URL into the websocket endpoint with
// the token as a query parameter.
func wsURL(baseURL, token string) string {
	ws := baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimRight(ws, "/") + "/ws/chat?token=" + url.QueryEscape(token)
}

// Connect opens the realtime connection. Calling it while already
// connecting or connected is a no-op; calling it without a stored
// token fails with ErrAuthMissing before any socket work happens.
func (m *Manager) Connect(ctx context.Context) error {
	switch m.machine.Current() {
	case Connecting, Connected:
		return nil
	}
	token := m.tokens.Token()
	if token == "" {
		return ErrAuthMissing
	}
	if err := m.machine.Transition(Connecting); err != nil {
		// lost the race to a concurrent Connect
		return nil
	}

	m.mu.Lock()
	m.manualClose = false
	conn := m.factory(transport.Callbacks{
		OnOpen:    m.onOpen,
		OnMessage: m.onMessage,
		OnClose:   m.onClose,
		OnError:   m.onError,
	})
	m.conn = conn
	m.mu.Unlock()

	endpoint := wsURL(m.baseURL, token)
	m.logger.Info("connecting", zap.String("endpoint", strings.SplitN(endpoint, "?", 2)[0]))
	conn.Open(ctx, endpoint)
	return nil
}

func (m *Manager) onOpen() {
	if err := m.machine.Transition(Connected); err != nil {
		m.logger.Warn("open on stale transport", zap.Error(err))
		return
	}
	m.logger.Info("realtime connection established")

	m.mu.Lock()
	m.attempts = 0
	m.startHeartbeatLocked()
	queued := m.pending
	m.pending = nil
	conn := m.conn
	m.mu.Unlock()

	for _, data := range queued {
		if err := conn.Send(data); err != nil {
			m.logger.Warn("failed to flush queued message", zap.Error(err))
		}
	}
	if len(queued) > 0 {
		m.logger.Info("flushed queued messages", zap.Int("count", len(queued)))
	}

	if m.onReady != nil {
		time.AfterFunc(m.cfg.OfflineLoadDelay(), m.onReady)
	}
	m.notifyStatus(Connected)
}

func (m *Manager) onMessage(data []byte) {
	frame, err := m.handler.HandleRaw(data)
	if err != nil || frame == nil {
		return
	}
	m.listenerMu.Lock()
	listeners := make([]func(*wire.Frame), 0, len(m.msgListeners))
	for _, fn := range m.msgListeners {
		listeners = append(listeners, fn)
	}
	m.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(frame)
	}
}

func (m *Manager) onClose(code int, wasClean bool) {
	m.mu.Lock()
	m.stopHeartbeatLocked()
	manual := m.manualClose
	m.mu.Unlock()

	if err := m.machine.Transition(Disconnected); err == nil {
		m.notifyStatus(Disconnected)
	}
	m.logger.Info("realtime connection closed",
		zap.Int("code", code),
		zap.Bool("clean", wasClean))

	if wasClean || manual {
		return
	}

	m.mu.Lock()
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.mu.Unlock()
		m.logger.Error("giving up after max reconnect attempts",
			zap.Int("attempts", m.cfg.MaxReconnectAttempts))
		return
	}
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	delay := m.reconnectDelay(attempt)
	m.logger.Info("scheduling reconnect",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
	// The timer is deliberately not tracked: a Disconnect issued while
	// it is pending will not cancel it, and the session comes back up.
	time.AfterFunc(delay, func() {
		m.mu.Lock()
		manual := m.manualClose
		m.mu.Unlock()
		if manual {
			m.logger.Warn("reconnect timer fired after manual disconnect, reconnecting anyway")
		}
		if err := m.Connect(context.Background()); err != nil {
			m.logger.Warn("reconnect attempt failed", zap.Error(err))
		}
	})
}

func (m *Manager) onError(err error) {
	m.logger.Warn("transport error", zap.Error(err))
	m.notifyStatus(TransportError)
}

// reconnectDelay grows linearly with the attempt number.
func (m *Manager) reconnectDelay(attempt int) time.Duration {
	return m.cfg.ReconnectInterval() * time.Duration(attempt)
}

func (m *Manager) startHeartbeatLocked() {
	m.stopHeartbeatLocked()
	stop := make(chan struct{})
	m.hbStop = stop
	conn := m.conn
	interval := m.cfg.HeartbeatInterval()
	beat, err := json.Marshal(wire.NewHeartbeat())
	if err != nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.Send(beat); err != nil {
					m.logger.Debug("heartbeat send failed", zap.Error(err))
				}
			}
		}
	}()
}

func (m *Manager) stopHeartbeatLocked() {
	if m.hbStop != nil {
		close(m.hbStop)
		m.hbStop = nil
	}
}

// Send marshals a payload and hands it to the transport. When the
// connection is down the payload queues FIFO and a connect is kicked
// off unless one is already in flight; queued payloads flush on open.
func (m *Manager) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if m.machine.Current() == Connected && conn != nil && conn.IsOpen() {
		return conn.Send(data)
	}

	m.mu.Lock()
	m.pending = append(m.pending, data)
	queued := len(m.pending)
	m.mu.Unlock()
	m.logger.Debug("queued message while disconnected", zap.Int("queued", queued))

	if m.machine.Current() == Disconnected {
		if err := m.Connect(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

// SendPrivateMessage sends a direct message to one user.
func (m *Manager) SendPrivateMessage(toUserID int64, content string, messageType int) error {
	return m.Send(wire.NewPrivateSend(toUserID, content, messageType))
}

// SendGroupMessage sends a message to a group.
func (m *Manager) SendGroupMessage(groupID int64, content string, messageType int) error {
	return m.Send(wire.NewGroupSend(groupID, content, messageType))
}

// SendTyping reports the local user's typing state to a peer.
func (m *Manager) SendTyping(toUserID int64, typing bool) error {
	return m.Send(wire.NewTypingSend(toUserID, typing))
}

// SendReadReceipt acknowledges a message as read.
func (m *Manager) SendReadReceipt(messageID int64) error {
	return m.Send(wire.NewReadReceiptSend(messageID))
}

// RequestOnlineUsers asks the server for the current roster.
func (m *Manager) RequestOnlineUsers() error {
	return m.Send(wire.NewGetOnlineUsers())
}

// Disconnect closes the connection on purpose. The close is reported
// as clean, so no reconnect is scheduled from it; a reconnect timer
// already pending keeps running.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manualClose = true
	m.stopHeartbeatLocked()
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// OnMessage registers a listener for every parsed inbound frame. The
// returned function unregisters it.
func (m *Manager) OnMessage(fn func(*wire.Frame)) func() {
	m.listenerMu.Lock()
	id := m.nextListener
	m.nextListener++
	m.msgListeners[id] = fn
	m.listenerMu.Unlock()
	return func() {
		m.listenerMu.Lock()
		delete(m.msgListeners, id)
		m.listenerMu.Unlock()
	}
}

// OnStatusChange registers a listener for status transitions. The
// returned function unregisters it.
func (m *Manager) OnStatusChange(fn func(Status)) func() {
	m.listenerMu.Lock()
	id := m.nextListener
	m.nextListener++
	m.statusListeners[id] = fn
	m.listenerMu.Unlock()
	return func() {
		m.listenerMu.Lock()
		delete(m.statusListeners, id)
		m.listenerMu.Unlock()
	}
}

func (m *Manager) notifyStatus(s Status) {
	m.listenerMu.Lock()
	listeners := make([]func(Status), 0, len(m.statusListeners))
	for _, fn := range m.statusListeners {
		listeners = append(listeners, fn)
	}
	m.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
