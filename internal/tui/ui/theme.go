package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds the palette shared by every view.
type Theme struct {
	Bg     tcell.Color
	Fg     tcell.Color
	Muted  tcell.Color
	Border tcell.Color
	Title  tcell.Color
	Accent tcell.Color

	HeaderFg tcell.Color
	HeaderBg tcell.Color
	CursorFg tcell.Color
	CursorBg tcell.Color

	CrumbFg       tcell.Color
	CrumbBg       tcell.Color
	CrumbActiveFg tcell.Color
	CrumbActiveBg tcell.Color

	Key        tcell.Color
	NumericKey tcell.Color

	// Conversation and thread rendering.
	Unread     tcell.Color
	Outgoing   tcell.Color
	Incoming   tcell.Color
	Note       tcell.Color
	Bot        tcell.Color
	Attachment tcell.Color
	ReadTick   tcell.Color

	Info tcell.Color
	Warn tcell.Color
	Err  tcell.Color
}

// DefaultTheme returns the dark palette.
func DefaultTheme() *Theme {
	return &Theme{
		Bg:     tcell.ColorBlack,
		Fg:     tcell.ColorCadetBlue,
		Muted:  tcell.ColorGray,
		Border: tcell.ColorDodgerBlue,
		Title:  tcell.ColorFuchsia,
		Accent: tcell.ColorPapayaWhip,

		HeaderFg: tcell.ColorWhite,
		HeaderBg: tcell.ColorBlack,
		CursorFg: tcell.ColorBlack,
		CursorBg: tcell.ColorAqua,

		CrumbFg:       tcell.ColorBlack,
		CrumbBg:       tcell.ColorAqua,
		CrumbActiveFg: tcell.ColorBlack,
		CrumbActiveBg: tcell.ColorOrange,

		Key:        tcell.ColorDodgerBlue,
		NumericKey: tcell.ColorFuchsia,

		Unread:     tcell.ColorPapayaWhip,
		Outgoing:   tcell.ColorLightGreen,
		Incoming:   tcell.ColorLightSkyBlue,
		Note:       tcell.ColorYellow,
		Bot:        tcell.ColorFuchsia,
		Attachment: tcell.ColorAqua,
		ReadTick:   tcell.ColorAqua,

		Info: tcell.ColorNavajoWhite,
		Warn: tcell.ColorOrange,
		Err:  tcell.ColorOrangeRed,
	}
}

// StateColor maps a daemon state name to a color. An empty state means the
// daemon could not be reached.
func (t *Theme) StateColor(state string) tcell.Color {
	switch state {
	case "READY":
		return t.Outgoing
	case "BOOTING", "HYDRATING", "SYNCING", "DEGRADED":
		return t.Warn
	default:
		return t.Err
	}
}

// Tag formats c for use inside a tview color tag.
func Tag(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
