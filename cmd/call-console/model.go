package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hauntq/internal/console"
	"hauntq/internal/mailto"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	numberStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 2).Border(lipgloss.RoundedBorder())
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
)

// refreshMsg tells the model the controller's view changed.
type refreshMsg struct{}

type mutationDoneMsg struct{ err error }

type linksMsg struct {
	links []mailto.Link
	err   error
}

type model struct {
	controller *console.Controller
	keys       keyMap
	timeout    time.Duration
	upcoming   int

	view  console.View
	links []mailto.Link
	note  string
}

func newModel(controller *console.Controller, timeout time.Duration, upcoming int) model {
	return model{
		controller: controller,
		keys:       defaultKeys,
		timeout:    timeout,
		upcoming:   upcoming,
		view:       controller.View(),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.view = m.controller.View()
		return m, nil
	case mutationDoneMsg:
		m.view = m.controller.View()
		if msg.err != nil {
			m.note = "update failed, reverted: " + msg.err.Error()
		} else {
			m.note = ""
		}
		return m, nil
	case linksMsg:
		if msg.err != nil {
			m.note = "mail links failed: " + msg.err.Error()
			return m, nil
		}
		m.links = msg.links
		m.note = fmt.Sprintf("%d mail links", len(msg.links))
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Advance):
		return m.mutate(m.controller.BeginAdvance(1))
	case key.Matches(msg, m.keys.Retreat):
		return m.mutate(m.controller.BeginAdvance(-1))
	case key.Matches(msg, m.keys.Pause):
		return m.mutate(m.controller.BeginTogglePause())
	case key.Matches(msg, m.keys.Reset):
		return m.mutate(m.controller.BeginReset())
	case key.Matches(msg, m.keys.Mail):
		controller, timeout, count := m.controller, m.timeout, m.upcoming
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			upcoming, err := controller.Upcoming(ctx, count)
			return linksMsg{links: upcoming.Links, err: err}
		}
	}
	return m, nil
}

// mutate renders a mutation the controller has already applied and sends
// the request off the update loop.
func (m model) mutate(mutation console.Mutation) (tea.Model, tea.Cmd) {
	m.view = m.controller.View()
	controller, timeout := m.controller, m.timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return mutationDoneMsg{err: controller.Commit(ctx, mutation)}
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("hauntq call console"))
	b.WriteString("\n\n")
	b.WriteString("Now calling\n")
	b.WriteString(numberStyle.Render(fmt.Sprintf("%d", m.view.CurrentNumber)))
	b.WriteString("\n")
	if m.view.Paused {
		b.WriteString(pausedStyle.Render("PAUSED"))
		b.WriteString("\n")
	}
	if m.view.Pending {
		b.WriteString(pendingStyle.Render("syncing..."))
		b.WriteString("\n")
	}
	if m.note != "" {
		style := helpStyle
		if m.view.Err != nil {
			style = errorStyle
		}
		b.WriteString(style.Render(m.note))
		b.WriteString("\n")
	}
	if len(m.links) > 0 {
		b.WriteString("\n")
		for _, link := range m.links {
			fmt.Fprintf(&b, "#%-4d %s\n", link.TicketNo, link.Href)
		}
	}
	b.WriteString("\n")
	help := make([]string, 0, len(m.keys.bindings()))
	for _, binding := range m.keys.bindings() {
		h := binding.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " · ")))
	b.WriteString("\n")
	return b.String()
}
