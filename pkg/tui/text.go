package tui

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Truncate shortens s to at most width display columns. When the cut drops
// whole lines the number of hidden lines is appended.
func Truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	cut := runewidth.Truncate(s, width, "")
	rest := s[len(cut):]
	out := cut + "…"
	switch n := strings.Count(rest, "\n"); {
	case n == 1:
		out += " (1 more line)"
	case n > 1:
		out += " (" + strconv.Itoa(n) + " more lines)"
	}
	return out
}

// Indent prefixes every line of s with pad.
func Indent(s, pad string) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
