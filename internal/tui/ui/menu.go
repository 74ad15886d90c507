package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// MenuHint describes a keyboard shortcut for display in the menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // digit shortcuts get their own color
}

// menuRows matches the header height.
const menuRows = 6

// Menu lays out key hints in columns of menuRows entries.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates an empty menu.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	tv.SetBackgroundColor(theme.Bg)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update replaces the hints shown.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	lines := make([]string, min(len(hints), menuRows))
	for i, h := range hints {
		kc := Tag(m.theme.Key)
		if h.Numeric {
			kc = Tag(m.theme.NumericKey)
		}
		lines[i%menuRows] += fmt.Sprintf("[%s::b]%-8s[-:-:-][%s]%-13s[-]",
			kc, "<"+tview.Escape(h.Key)+">", Tag(m.theme.Fg), h.Description)
	}
	_, _ = fmt.Fprint(m, strings.Join(lines, "\n"))
}
