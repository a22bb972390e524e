package session

import (
	"fmt"
	"sync"
)

// State is a session lifecycle state. States only move forward.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingSetupAck
	StateStreaming
	StateShuttingDown
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingSetupAck:
		return "awaiting_setup_ack"
	case StateStreaming:
		return "streaming"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StateMachine is the shared session state. All reads and transitions go
// through one mutex.
type StateMachine struct {
	mu        sync.Mutex
	state     State
	setupDone bool
	setupCh   chan struct{}
	onChange  func(from, to State)
}

// NewStateMachine returns a machine in StateConnecting.
func NewStateMachine() *StateMachine {
	return &StateMachine{setupCh: make(chan struct{})}
}

// State returns the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to a later state. States may be skipped; moving to the
// current or an earlier state fails with ErrInvalidTransition.
func (m *StateMachine) Transition(to State) error {
	m.mu.Lock()
	from := m.state
	if to <= from || to > StateClosed {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.state = to
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(from, to)
	}
	return nil
}

// Running reports whether the session has not started shutting down.
func (m *StateMachine) Running() bool {
	return m.State() < StateShuttingDown
}

// MarkSetupComplete records the server's setup acknowledgement. It returns
// true only for the first call.
func (m *StateMachine) MarkSetupComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setupDone {
		return false
	}
	m.setupDone = true
	close(m.setupCh)
	return true
}

// SetupComplete is closed once setup has been acknowledged.
func (m *StateMachine) SetupComplete() <-chan struct{} {
	return m.setupCh
}

// IsSetupComplete reports whether setup has been acknowledged.
func (m *StateMachine) IsSetupComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setupDone
}

// OnChange registers fn to run after every transition, outside the lock.
func (m *StateMachine) OnChange(fn func(from, to State)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}
