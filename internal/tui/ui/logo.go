package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo is the header art. Its color follows the daemon state.
type Logo struct {
	*tview.TextView
	theme *Theme
}

// NewLogo creates the logo in the "unreachable" color until a state arrives.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.Bg)
	tv.SetBorderPadding(1, 0, 1, 0)
	l := &Logo{TextView: tv, theme: theme}
	l.SetState("")
	return l
}

// SetState recolors the logo for a daemon state.
func (l *Logo) SetState(state string) {
	c := Tag(l.theme.StateColor(state))
	l.Clear()
	_, _ = fmt.Fprintf(l,
		"[%[1]s::b] ╦╔╗╔╔╗ ╔═╗═╗ ╦[-:-:-]\n"+
			"[%[1]s::b] ║║║║╠╩╗║ ║╔╩╦╝[-:-:-]\n"+
			"[%[1]s::b] ╩╝╚╝╚═╝╚═╝╩ ╚═[-:-:-]\n"+
			"[%[2]s]conversations[-:-:-]",
		c, Tag(l.theme.Muted),
	)
}
