package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	enter  key.Binding
	back   key.Binding
	manual key.Binding
	paste  key.Binding
	retry  key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual entry")),
		paste:  key.NewBinding(key.WithKeys("ctrl+v"), key.WithHelp("ctrl+v", "paste")),
		retry:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.enter, k.back},
		{k.manual, k.paste},
		{k.retry, k.quit},
	}
}
