package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Advance key.Binding
	Retreat key.Binding
	Pause   key.Binding
	Reset   key.Binding
	Mail    key.Binding
	Quit    key.Binding
}

var defaultKeys = keyMap{
	Advance: key.NewBinding(
		key.WithKeys("+", "right"),
		key.WithHelp("+/→", "next"),
	),
	Retreat: key.NewBinding(
		key.WithKeys("-", "left"),
		key.WithHelp("-/←", "back"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause/resume"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Mail: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "mail links"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.Advance, k.Retreat, k.Pause, k.Reset, k.Mail, k.Quit}
}
