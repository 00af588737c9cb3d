package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Leave    key.Binding
	Next     key.Binding
	Prev     key.Binding
	Submit   key.Binding
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	EditURL  key.Binding
	EditDir  key.Binding
	Download key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Leave:    key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	Prev:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
	Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Top:      key.NewBinding(key.WithKeys("home", "g")),
	Bottom:   key.NewBinding(key.WithKeys("end", "G")),
	EditURL:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "url")),
	EditDir:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "directory")),
	Download: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download")),
}
