package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.Border)
	tv.SetBackgroundColor(theme.Bg)
	tv.SetTextColor(theme.Fg)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.Title)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements ui.View.
func (hv *HelpView) Name() string { return "Help" }

type helpSection struct {
	title string
	keys  [][2]string
}

var helpSections = []helpSection{
	{"Global Keys", [][2]string{
		{":", "Command mode"},
		{"/", "Filter conversations"},
		{"?", "Help"},
		{"Esc", "Cancel / Go back"},
		{"q", "Quit"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Conversation List", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Jump to Nth conversation"},
		{"0", "Clear filter"},
		{"c", "Contact details"},
		{"d", "Delete conversation"},
		{"r", "Refresh from server"},
	}},
	{"Message Thread", [][2]string{
		{"i", "Focus composer"},
		{"Enter", "Send message (in composer)"},
		{"c", "Contact details"},
		{"r", "Refresh thread"},
	}},
	{"Contact", [][2]string{
		{"Enter", "Save name (in name field)"},
	}},
	{"Commands (: mode)", [][2]string{
		{":open <name>", "Open conversation by name"},
		{":rename <name>", "Rename the open contact"},
		{":refresh", "Refresh from server"},
		{":help / :h", "Show this help"},
		{":quit / :q", "Quit application"},
		{"Tab / arrows", "Pick a completion"},
	}},
	{"Filter (/ mode)", [][2]string{
		{"type", "Filter by name, phone or last message"},
		{"Enter", "Keep filter"},
		{"Esc", "Clear filter"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.Key)

	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, k := range s.keys {
			fmt.Fprintf(&b, "  [%s]%-16s[-:-:-] %s\n", kc, tview.Escape(k[0]), k[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
