package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// filterBar narrows the picker list as the user types.
type filterBar struct {
	active bool
	input  textinput.Model
	query  string
}

func newFilterBar() filterBar {
	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.CharLimit = 256
	ti.Width = 40
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	return filterBar{input: ti}
}

// Open activates the bar and focuses the text input.
func (f *filterBar) Open() {
	f.active = true
	f.input.SetValue(f.query)
	f.input.Focus()
}

// Update handles key events while the bar is active. Esc clears the filter.
func (f *filterBar) Update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		f.active = false
		f.query = ""
		f.input.Reset()
		f.input.Blur()
		return nil
	case "enter":
		f.active = false
		f.input.Blur()
		return nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	f.query = f.input.Value()
	return cmd
}

// Matches reports whether text contains the query, ignoring case.
func (f *filterBar) Matches(text string) bool {
	return f.query == "" || strings.Contains(strings.ToLower(text), strings.ToLower(f.query))
}
