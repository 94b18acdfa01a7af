// Package transport owns the raw websocket lifecycle. A Conn holds at
// most one underlying socket; everything it reports flows through the
// event callbacks, never through panics or synchronous errors on Open.
package transport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ErrNotOpen is returned by Send when the socket is not open. Callers
// are expected to check IsOpen first; this layer never queues.
var ErrNotOpen = errors.New("transport: socket not open")

// Callbacks receive transport events. Unset callbacks are skipped.
// OnClose reports the close code and whether the closure was clean
// (normal closure initiated by either side).
type Callbacks struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(code int, wasClean bool)
	OnError   func(err error)
}

// Conn wraps a single websocket connection.
type Conn struct {
	mu       sync.Mutex
	ws       *websocket.Conn
	open     bool
	closed   bool // deliverClose already fired for this socket
	manually bool // Close() was called locally
	cancel   context.CancelFunc
	cb       Callbacks
	logger   *zap.Logger
}

// New creates an unopened Conn with the given callbacks.
func New(cb Callbacks, logger *zap.Logger) *Conn {
	return &Conn{cb: cb, logger: logger}
}

// Open dials the websocket URL. It returns immediately; failure is
// reported asynchronously through OnError followed by OnClose with
// wasClean=false, mirroring how a browser socket fails.
func (c *Conn) Open(ctx context.Context, url string) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		ws, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			c.logger.Warn("websocket dial failed", zap.Error(err))
			if c.cb.OnError != nil {
				c.cb.OnError(err)
			}
			c.deliverClose(0, false)
			return
		}
		// Chat frames are small; the default 32KiB read limit still
		// leaves headroom, but file notices embed URLs only.
		ws.SetReadLimit(1 << 20)

		c.mu.Lock()
		c.ws = ws
		c.open = true
		c.closed = false
		c.manually = false
		c.mu.Unlock()

		if c.cb.OnOpen != nil {
			c.cb.OnOpen()
		}
		c.readLoop(ctx, ws)
	}()
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			c.mu.Lock()
			c.open = false
			manual := c.manually
			c.mu.Unlock()

			status := websocket.CloseStatus(err)
			wasClean := manual || status == websocket.StatusNormalClosure
			if !wasClean && c.cb.OnError != nil && status == -1 {
				c.cb.OnError(err)
			}
			c.deliverClose(int(status), wasClean)
			return
		}
		if c.cb.OnMessage != nil {
			c.cb.OnMessage(data)
		}
	}
}

// Send writes a text frame. Valid only while the socket is open.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	ws, open := c.ws, c.open
	c.mu.Unlock()
	if !open || ws == nil {
		return ErrNotOpen
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}

// IsOpen reports whether the socket is currently open.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Close shuts the socket down. Idempotent; safe when never opened. The
// resulting OnClose reports a clean closure.
func (c *Conn) Close() {
	c.mu.Lock()
	ws := c.ws
	c.manually = true
	c.open = false
	cancel := c.cancel
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close(websocket.StatusNormalClosure, "client closing")
	}
	if cancel != nil {
		cancel()
	}
	// If the read loop never started (dial still in flight or already
	// finished), make sure a close event is still observed exactly once.
	if ws == nil {
		c.deliverClose(int(websocket.StatusNormalClosure), true)
	}
}

// deliverClose fires OnClose at most once per socket lifetime.
func (c *Conn) deliverClose(code int, wasClean bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.ws = nil
	c.mu.Unlock()

	if c.cb.OnClose != nil {
		c.cb.OnClose(code, wasClean)
	}
}
