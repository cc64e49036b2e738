package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Quit              key.Binding
	Help              key.Binding
	Up                key.Binding
	Down              key.Binding
	PageUp            key.Binding
	PageDown          key.Binding
	Filter            key.Binding
	SearchText        key.Binding
	SearchFuzzy       key.Binding
	SearchFirstLetter key.Binding
	Insert            key.Binding
	InsertAll         key.Binding
	ViewPassage       key.Binding
	Back              key.Binding
	Close             key.Binding
	Copy              key.Binding
}

var Keys = KeyMap{
	Quit:              key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Help:              key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Up:                key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:              key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	PageUp:            key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown:          key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Filter:            key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter blocks")),
	SearchText:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "text search")),
	SearchFuzzy:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fuzzy search")),
	SearchFirstLetter: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "first letter search")),
	Insert:            key.NewBinding(key.WithKeys("enter", "a"), key.WithHelp("enter", "insert line")),
	InsertAll:         key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "insert all")),
	ViewPassage:       key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "view shabad")),
	Back:              key.NewBinding(key.WithKeys("b", "backspace"), key.WithHelp("b", "back")),
	Close:             key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	Copy:              key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy cloze")),
}
