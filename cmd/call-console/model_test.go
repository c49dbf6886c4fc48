package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hauntq/internal/client"
	"hauntq/internal/console"
	"hauntq/internal/logging"
	"hauntq/internal/mailto"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeAPI struct {
	status  client.Status
	stepErr error
}

func (f *fakeAPI) Status(context.Context) (client.Status, error) { return f.status, nil }

func (f *fakeAPI) Step(_ context.Context, delta int) (client.Status, error) {
	if f.stepErr != nil {
		return client.Status{}, f.stepErr
	}
	f.status.CurrentNumber += delta
	if f.status.CurrentNumber < 1 {
		f.status.CurrentNumber = 1
	}
	f.status.Version++
	return f.status, nil
}

func (f *fakeAPI) SetPaused(_ context.Context, paused bool) (client.Status, error) {
	f.status.SystemPaused = paused
	f.status.Version++
	return f.status, nil
}

func (f *fakeAPI) ResetCounter(context.Context) (client.Status, error) {
	f.status = client.Status{CurrentNumber: 1, Version: f.status.Version + 1}
	return f.status, nil
}

func (f *fakeAPI) Upcoming(context.Context, int) (client.Upcoming, error) {
	return client.Upcoming{
		CurrentNumber: f.status.CurrentNumber,
		Links:         []mailto.Link{{ReservationID: 9, TicketNo: 3, Email: "a@example.com", Href: "mailto:a@example.com"}},
	}, nil
}

func newTestModel(api *fakeAPI) model {
	controller := console.NewController(api, console.Options{Logger: logging.Discard()})
	return newModel(controller, time.Second, 5)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds a key and runs the resulting command back through Update.
func press(t *testing.T, m model, msg tea.KeyMsg) model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(model)
	if cmd == nil {
		return m
	}
	next, _ = m.Update(cmd())
	return next.(model)
}

func TestAdvanceAndRetreatKeys(t *testing.T) {
	api := &fakeAPI{status: client.Status{CurrentNumber: 1, Version: 1}}
	m := newTestModel(api)

	m = press(t, m, runes("+"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.view.CurrentNumber != 3 || api.status.CurrentNumber != 3 {
		t.Fatalf("expected 3 after two advances, got view %d server %d", m.view.CurrentNumber, api.status.CurrentNumber)
	}

	for i := 0; i < 4; i++ {
		m = press(t, m, runes("-"))
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if m.view.CurrentNumber != 1 {
		t.Fatalf("expected clamp at 1, got %d", m.view.CurrentNumber)
	}
	if !strings.Contains(m.View(), "1") {
		t.Fatalf("expected rendered number")
	}
}

func TestAdvanceShowsOptimisticValueBeforeRequest(t *testing.T) {
	api := &fakeAPI{status: client.Status{CurrentNumber: 1, Version: 1}}
	m := newTestModel(api)

	next, cmd := m.Update(runes("+"))
	m = next.(model)
	if cmd == nil {
		t.Fatalf("expected request command")
	}
	if m.view.CurrentNumber != 2 || !m.view.Pending {
		t.Fatalf("expected pending optimistic 2 before the request, got %+v", m.view)
	}
	if api.status.CurrentNumber != 1 {
		t.Fatalf("request sent before command ran: server at %d", api.status.CurrentNumber)
	}
	if !strings.Contains(m.View(), "syncing") {
		t.Fatalf("expected syncing marker:\n%s", m.View())
	}

	next, _ = m.Update(cmd())
	m = next.(model)
	if m.view.CurrentNumber != 2 || m.view.Pending {
		t.Fatalf("expected settled 2, got %+v", m.view)
	}
}

func TestFailedStepShowsRevertNote(t *testing.T) {
	api := &fakeAPI{status: client.Status{CurrentNumber: 4, Version: 1}, stepErr: errors.New("service unavailable")}
	m := newTestModel(api)
	m = press(t, m, runes("+"))
	if m.view.CurrentNumber != 1 {
		t.Fatalf("expected rollback to initial display, got %d", m.view.CurrentNumber)
	}
	if !strings.Contains(m.View(), "reverted") {
		t.Fatalf("expected revert note in view:\n%s", m.View())
	}
}

func TestPauseResetAndMailKeys(t *testing.T) {
	api := &fakeAPI{status: client.Status{CurrentNumber: 6, Version: 1}}
	m := newTestModel(api)

	m = press(t, m, runes("p"))
	if !m.view.Paused || !strings.Contains(m.View(), "PAUSED") {
		t.Fatalf("expected paused view")
	}
	m = press(t, m, runes("r"))
	if m.view.Paused || m.view.CurrentNumber != 1 {
		t.Fatalf("expected reset view, got %+v", m.view)
	}
	m = press(t, m, runes("m"))
	if len(m.links) != 1 || !strings.Contains(m.View(), "mailto:a@example.com") {
		t.Fatalf("expected mail link rendered:\n%s", m.View())
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(&fakeAPI{status: client.Status{CurrentNumber: 1}})
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
