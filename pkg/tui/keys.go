package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the picker key bindings.
type keyMap struct {
	Choose key.Binding
	Up     key.Binding
	Down   key.Binding
	PgUp   key.Binding
	PgDown key.Binding
	Filter key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Choose: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "choose"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	PgUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "page up"),
	),
	PgDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "page down"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

// keyBarText renders the key hint line.
func keyBarText(filtering bool) string {
	if filtering {
		return keyStyle.Render("Enter") + keyDescStyle.Render(":apply") + "  " +
			keyStyle.Render("Esc") + keyDescStyle.Render(":clear")
	}
	return keyStyle.Render("↑↓") + keyDescStyle.Render(":select") + "  " +
		keyStyle.Render("Enter") + keyDescStyle.Render(":choose") + "  " +
		keyStyle.Render("1-9") + keyDescStyle.Render(":quick") + "  " +
		keyStyle.Render("/") + keyDescStyle.Render(":filter") + "  " +
		keyStyle.Render("Esc") + keyDescStyle.Render(":cancel")
}
