// Package session models the lifecycle of an optional off-chain session
// around an on-chain settlement.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State is a lifecycle state of an off-chain session.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
	SessionOpen  State = "session_open"
	Settling     State = "settling"
	Closed       State = "closed"
)

var ErrInvalidTransition = errors.New("invalid session transition")

// transitions lists the allowed next states for each state.
var transitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Disconnected},
	Connected:    {SessionOpen, Closed, Disconnected},
	SessionOpen:  {Settling, Closed},
	Settling:     {SessionOpen, Closed},
	Closed:       {Disconnected},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine holds the state of one session. It is safe for concurrent use.
type Machine struct {
	mu        sync.Mutex
	state     State
	sessionID string
}

// NewMachine returns a machine in the Disconnected state.
func NewMachine() *Machine {
	return &Machine{state: Disconnected}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the id recorded by Open, or "" before a session exists.
func (m *Machine) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Transition moves to the given state.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

// Open moves from Connected to SessionOpen and records the session id.
func (m *Machine) Open(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidTransition)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionLocked(SessionOpen); err != nil {
		return err
	}
	m.sessionID = sessionID
	return nil
}

// Reset returns a Closed machine to Disconnected and forgets the session id.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionLocked(Disconnected); err != nil {
		return err
	}
	m.sessionID = ""
	return nil
}

func (m *Machine) transitionLocked(to State) error {
	if !CanTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	return nil
}
