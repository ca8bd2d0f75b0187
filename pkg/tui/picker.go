package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCanceled is returned by Pick when the user leaves without choosing.
var ErrCanceled = errors.New("selection canceled")

// Item is one selectable row.
type Item struct {
	Title  string
	Detail string
}

// pickerModel renders a filterable selection list.
type pickerModel struct {
	title  string
	items  []Item
	filter filterBar

	visible []int // indexes into items after filtering
	cursor  int   // position within visible
	offset  int   // first visible row

	chosen   int
	canceled bool

	width  int
	height int
}

func newPicker(title string, items []Item, initial int) pickerModel {
	m := pickerModel{
		title:  title,
		items:  items,
		filter: newFilterBar(),
		chosen: -1,
		height: 20,
	}
	m.refilter()
	if initial >= 0 && initial < len(items) {
		m.cursor = initial
	}
	m.clampScroll()
	return m
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()
		return m, nil
	case tea.KeyMsg:
		if m.filter.active {
			cmd := m.filter.Update(msg)
			m.refilter()
			return m, cmd
		}
		switch {
		case key.Matches(msg, keys.Quit):
			m.canceled = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.PgUp):
			m.cursor = max(0, m.cursor-m.pageSize())
		case key.Matches(msg, keys.PgDown):
			m.cursor = min(len(m.visible)-1, m.cursor+m.pageSize())
		case key.Matches(msg, keys.Filter):
			m.filter.Open()
			return m, nil
		case key.Matches(msg, keys.Choose):
			if len(m.visible) > 0 {
				m.chosen = m.visible[m.cursor]
				return m, tea.Quit
			}
		default:
			if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
				if idx := int(s[0] - '1'); idx < len(m.visible) {
					m.cursor = idx
					m.chosen = m.visible[idx]
					return m, tea.Quit
				}
			}
		}
		m.clampScroll()
	}
	return m, nil
}

func (m *pickerModel) refilter() {
	m.visible = m.visible[:0]
	for i, it := range m.items {
		if m.filter.Matches(it.Title + " " + it.Detail) {
			m.visible = append(m.visible, i)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
	m.clampScroll()
}

// pageSize leaves room for the title, filter and key bar.
func (m pickerModel) pageSize() int {
	return max(1, m.height-6)
}

func (m *pickerModel) clampScroll() {
	page := m.pageSize()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+page {
		m.offset = m.cursor - page + 1
	}
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	if m.filter.active || m.filter.query != "" {
		b.WriteString(m.filter.input.View())
		b.WriteString("\n")
	}

	if len(m.visible) == 0 {
		b.WriteString(DimStyle.Render("  no matches"))
		b.WriteString("\n")
	}

	end := min(len(m.visible), m.offset+m.pageSize())
	for row := m.offset; row < end; row++ {
		it := m.items[m.visible[row]]
		label := it.Title
		if row < 9 {
			label = fmt.Sprintf("%d. %s", row+1, label)
		}
		line := "  " + itemNormal.Render(label)
		if row == m.cursor {
			line = GlyphCursor + " " + itemCurrent.Render(label)
		}
		if it.Detail != "" && it.Detail != it.Title {
			line += "  " + itemDetail.Render(it.Detail)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if end < len(m.visible) {
		b.WriteString(DimStyle.Render(fmt.Sprintf("  … %d more", len(m.visible)-end)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(keyBarText(m.filter.active))

	body := b.String()
	if m.width > 0 {
		return panelBorder.Width(m.width - 2).Render(body)
	}
	return lipgloss.NewStyle().Render(body)
}

// Pick shows items on the terminal and returns the index of the chosen one.
// initial positions the cursor; an out-of-range value starts at the top.
// Keys are read from in (the process stdin when nil) and the picker draws
// on out, stderr when nil, so stdout stays clean for script output.
func Pick(ctx context.Context, in io.Reader, out io.Writer, title string, items []Item, initial int) (int, error) {
	if len(items) == 0 {
		return -1, errors.New("nothing to choose from")
	}
	if out == nil {
		out = os.Stderr
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	p := tea.NewProgram(newPicker(title, items, initial), opts...)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return -1, fmt.Errorf("picker: %w", err)
	}
	m := final.(pickerModel)
	if m.canceled || m.chosen < 0 {
		return -1, ErrCanceled
	}
	return m.chosen, nil
}
