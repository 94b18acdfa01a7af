package session

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tbaldin/wirechat/internal/bus"
)

// Status represents the realtime connection state.
type Status string

const (
	Disconnected Status = "DISCONNECTED"
	Connecting   Status = "CONNECTING"
	Connected    Status = "CONNECTED"

	// TransportError is broadcast to status listeners when the socket
	// reports an error. It is a listener-only signal; the connection
	// state machine never holds it, and the close that follows the
	// error carries the actual DISCONNECTED transition.
	TransportError Status = "ERROR"
)

// validTransitions defines allowed status transitions.
var validTransitions = map[Status][]Status{
	Disconnected: {Connecting},
	Connecting:   {Connected, Disconnected},
	Connected:    {Disconnected},
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From Status
	To   Status
}

// machine tracks and enforces connection status transitions.
type machine struct {
	mu      sync.RWMutex
	current Status
	bus     *bus.Bus
}

func newMachine(b *bus.Bus) *machine {
	return &machine{current: Disconnected, bus: b}
}

func (m *machine) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new status. Returns error if the
// transition is invalid.
func (m *machine) Transition(to Status) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: time.Now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}
