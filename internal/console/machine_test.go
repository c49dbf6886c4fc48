package console

import (
	"errors"
	"testing"
)

func TestMachineAdvanceClampsAtOne(t *testing.T) {
	m := NewMachine(State{CurrentNumber: 2}, 0)
	m.Advance(-5)
	if got := m.View().CurrentNumber; got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}
	if !m.View().Pending {
		t.Fatalf("expected pending after optimistic change")
	}
}

func TestMachineToleranceWhilePending(t *testing.T) {
	m := NewMachine(State{CurrentNumber: 5}, 0)
	m.Advance(1)
	m.Reconcile(State{CurrentNumber: 5}, 3, false)
	if got := m.View().CurrentNumber; got != 6 {
		t.Fatalf("expected optimistic 6 kept within tolerance, got %d", got)
	}

	m.Reconcile(State{CurrentNumber: 9}, 4, false)
	if got := m.View().CurrentNumber; got != 9 {
		t.Fatalf("expected server 9 to win outside tolerance, got %d", got)
	}
}

func TestMachineSettledReplacesDisplay(t *testing.T) {
	m := NewMachine(State{CurrentNumber: 5}, 0)
	m.Advance(1)
	m.Reconcile(State{CurrentNumber: 6, Paused: true}, 2, true)
	view := m.View()
	if view.Pending {
		t.Fatalf("expected no pending mutations")
	}
	if view.CurrentNumber != 6 || !view.Paused || view.Version != 2 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestMachineIgnoresStaleVersions(t *testing.T) {
	m := NewMachine(State{CurrentNumber: 1}, 0)
	m.Reconcile(State{CurrentNumber: 10}, 7, false)
	m.Reconcile(State{CurrentNumber: 4}, 5, false)
	if got := m.View().CurrentNumber; got != 10 {
		t.Fatalf("expected stale response ignored, got %d", got)
	}
}

func TestMachineSettledStaleAdoptsLatest(t *testing.T) {
	m := NewMachine(State{CurrentNumber: 5}, 0)
	m.Advance(1)
	m.Reconcile(State{CurrentNumber: 9, Paused: true}, 8, false)
	m.Advance(1)
	if got := m.View().CurrentNumber; got != 10 {
		t.Fatalf("expected optimistic 10, got %d", got)
	}

	// Both answers are older than the poll at version 8.
	m.Reconcile(State{CurrentNumber: 6}, 2, true)
	m.Reconcile(State{CurrentNumber: 10}, 3, true)
	view := m.View()
	if view.Pending {
		t.Fatalf("expected no pending mutations")
	}
	if view.CurrentNumber != 9 || !view.Paused || view.Version != 8 {
		t.Fatalf("expected polled state 9 paused at version 8, got %+v", view)
	}
}

func TestMachineRollback(t *testing.T) {
	m := NewMachine(State{CurrentNumber: 4}, 0)
	action := m.TogglePause()
	if !m.View().Paused {
		t.Fatalf("expected optimistic pause")
	}
	failure := errors.New("boom")
	m.Rollback(action, failure)
	view := m.View()
	if view.Paused || view.CurrentNumber != 4 || view.Pending {
		t.Fatalf("expected rollback to previous state, got %+v", view)
	}
	if !errors.Is(view.Err, failure) {
		t.Fatalf("expected error recorded, got %v", view.Err)
	}
}

func TestMachineReset(t *testing.T) {
	m := NewMachine(State{CurrentNumber: 30, Paused: true}, 0)
	m.Reset()
	view := m.View()
	if view.CurrentNumber != 1 || view.Paused {
		t.Fatalf("unexpected reset view %+v", view)
	}
}
