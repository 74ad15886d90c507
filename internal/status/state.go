package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/inbox/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting   State = "BOOTING"
	Hydrating State = "HYDRATING"
	Syncing   State = "SYNCING"
	Ready     State = "READY"
	Degraded  State = "DEGRADED"
	Error     State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:   {Hydrating, Error},
	Hydrating: {Syncing, Error},
	Syncing:   {Ready, Degraded, Error},
	Ready:     {Degraded, Error},
	Degraded:  {Ready, Error},
	Error:     {Booting},
}

// Machine tracks and enforces daemon runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindStatusChanged, StatusChange{From: from, To: to}))
	}
	return nil
}

// Settle moves a syncing or degraded daemon to Ready when healthy and a
// syncing or ready one to Degraded otherwise. It is a no-op in any other state
// or when already there, and reports whether the state changed.
func (m *Machine) Settle(healthy bool) bool {
	to := Degraded
	if healthy {
		to = Ready
	}
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	if cur == to || (cur != Syncing && cur != Ready && cur != Degraded) {
		return false
	}
	return m.Transition(to) == nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}
