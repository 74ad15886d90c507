package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData holds daemon information for display.
type ProfileData struct {
	Profile       string
	API           string
	Status        string
	Conversations int
	Watched       int
	Uptime        time.Duration
	LastSync      time.Time
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.Bg)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	fgColor := Tag(pi.theme.Fg)
	counterColor := Tag(pi.theme.Accent)
	stateColor := Tag(pi.theme.StateColor(data.Status))

	lastSync := "-"
	if !data.LastSync.IsZero() {
		lastSync = data.LastSync.Format("15:04:05")
	}

	text := fmt.Sprintf(
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]API:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Convs:[-:-:-]   [%s]%d[-] [::d](%d watched)[-:-:-]\n"+
			"[%s::b]Synced:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, data.Profile,
		fgColor, counterColor, tview.Escape(data.API),
		fgColor, stateColor, statusText(data.Status),
		fgColor, counterColor, data.Conversations, data.Watched,
		fgColor, counterColor, lastSync,
		fgColor, counterColor, formatDuration(data.Uptime),
	)

	_, _ = fmt.Fprint(pi, text)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func statusText(state string) string {
	if state == "" {
		return "unreachable"
	}
	return state
}
