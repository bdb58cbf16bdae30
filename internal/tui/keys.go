package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the workbook viewer.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	Edit     key.Binding
	Clear    key.Binding
	Recalc   key.Binding
	Help     key.Binding
	Quit     key.Binding

	// Edit mode
	Commit key.Binding
	Cancel key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "go to A1"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter", "i"),
			key.WithHelp("enter", "edit cell"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "clear cell"),
		),
		Recalc: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "recalculate"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Commit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "commit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// ShortHelp returns keybindings to show in the help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Clear, k.Recalc, k.Quit, k.Help}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.PageUp, k.PageDown, k.Home},
		{k.Edit, k.Clear, k.Recalc},
		{k.Help, k.Quit},
	}
}
