// Package tui holds the terminal widgets used by envrun's interactive
// prompter: a Bubble Tea choice picker, markdown rendering for remediation
// messages and width-aware truncation.
package tui

import "github.com/charmbracelet/lipgloss"

// Glyphs convey meaning without relying on color alone.
const (
	GlyphCursor   = "▸"
	GlyphSelected = "✓"
	GlyphFailed   = "✗"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
	colorYellow = lipgloss.Color("214")
)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var (
	itemNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	itemCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	itemDetail = lipgloss.NewStyle().
			Foreground(colorDim)
)

var panelBorder = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorDim).
	Padding(0, 1)

// --- Key bar styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

var (
	// SuccessStyle marks completed work in CLI output.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	// ErrorStyle marks failures in CLI output.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	// DimStyle is used for secondary text.
	DimStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)
