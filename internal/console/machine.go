// Package console holds the admin call console logic independent of any UI:
// an optimistic state machine over the server's call state and a poll
// scheduler that speeds up after local mutations.
package console

import (
	"sync"
)

// DefaultTolerance is the largest server/optimistic gap, exclusive, treated
// as still converging while a mutation is in flight.
const DefaultTolerance = 2

type State struct {
	CurrentNumber int
	Paused        bool
}

// Action records one optimistic change so it can be rolled back.
type Action struct {
	Before State
	Target State
}

type View struct {
	State
	Version int64
	Pending bool
	// Err is the last mutation failure, cleared by the next successful one.
	Err error
}

type Machine struct {
	mu        sync.Mutex
	display   State
	// latest is the newest server state seen, at version.
	latest    State
	version   int64
	pending   int
	tolerance int
	lastErr   error
}

func NewMachine(initial State, tolerance int) *Machine {
	if initial.CurrentNumber < 1 {
		initial.CurrentNumber = 1
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Machine{display: initial, latest: initial, tolerance: tolerance}
}

func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{State: m.display, Version: m.version, Pending: m.pending > 0, Err: m.lastErr}
}

// ApplyOptimistic shows target immediately and marks a mutation in flight.
func (m *Machine) ApplyOptimistic(target State) Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(target)
}

// Advance is ApplyOptimistic for a relative number change, clamped at 1.
func (m *Machine) Advance(delta int) Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.display
	target.CurrentNumber += delta
	return m.applyLocked(target)
}

func (m *Machine) TogglePause() Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.display
	target.Paused = !target.Paused
	return m.applyLocked(target)
}

func (m *Machine) Reset() Action {
	return m.ApplyOptimistic(State{CurrentNumber: 1})
}

// Reconcile folds an authoritative server state into the display. settled
// marks the response to one of our own mutations; otherwise it is a poll.
// Responses older than the newest version seen are ignored.
func (m *Machine) Reconcile(server State, version int64, settled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if settled && m.pending > 0 {
		m.pending--
		m.lastErr = nil
	}
	if version > 0 && version < m.version {
		// The last in-flight answer can arrive after a newer poll.
		if settled && m.pending == 0 {
			m.display = m.latest
		}
		return
	}
	if version > m.version {
		m.version = version
	}
	m.latest = server

	if m.pending == 0 {
		m.display = server
		return
	}
	if abs(server.CurrentNumber-m.display.CurrentNumber) < m.tolerance {
		return
	}
	m.display = server
}

// Rollback restores the state from before a failed action and records err.
func (m *Machine) Rollback(action Action, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending > 0 {
		m.pending--
	}
	m.display = action.Before
	m.lastErr = err
}

func (m *Machine) applyLocked(target State) Action {
	if target.CurrentNumber < 1 {
		target.CurrentNumber = 1
	}
	action := Action{Before: m.display, Target: target}
	m.display = target
	m.pending++
	return action
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
