package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start key.Binding
	Reset key.Binding
	End   key.Binding
	Quit  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/pause")),
		Reset: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		End:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Reset, k.End, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
