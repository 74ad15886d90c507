package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumbs shows the profile followed by the navigation trail.
type Crumbs struct {
	*tview.TextView
	theme   *Theme
	profile string
}

// NewCrumbs creates a breadcrumb bar rooted at the profile name.
func NewCrumbs(theme *Theme, profile string) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.Bg)
	return &Crumbs{TextView: tv, theme: theme, profile: profile}
}

// Update renders names, the last one highlighted.
func (c *Crumbs) Update(names []string) {
	c.Clear()
	parts := []string{fmt.Sprintf("[%s::d]%s[-:-:-]", Tag(c.theme.Muted), tview.Escape(c.profile))}
	for i, name := range names {
		fg, bg, attr := c.theme.CrumbFg, c.theme.CrumbBg, ""
		if i == len(names)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", Tag(fg), Tag(bg), attr, tview.Escape(name)))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " "))
}
