package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the main conversation list view.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []*rpc.Conversation
	visible []*rpc.Conversation
	filter  string
	empty   string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.Border)
	table.SetBackgroundColor(theme.Bg)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.CursorFg).
		Background(theme.CursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.Title)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Name implements ui.View.
func (cl *ConversationList) Name() string { return "Conversations" }

// Update refreshes the list with new data. The selection follows the
// previously selected conversation when it is still listed.
func (cl *ConversationList) Update(convs []*rpc.Conversation, loadError string) {
	selected := cl.Selected()
	cl.convs = convs
	cl.empty = "No conversations"
	if loadError != "" {
		cl.empty = "Failed to load conversations: " + loadError
	}
	cl.render()
	cl.selectUUID(selected)
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// Filter returns the active filter text.
func (cl *ConversationList) Filter() string {
	return cl.filter
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

func (cl *ConversationList) matches(c *rpc.Conversation) bool {
	if cl.filter == "" {
		return true
	}
	f := strings.ToLower(cl.filter)
	return strings.Contains(strings.ToLower(c.Name), f) ||
		strings.Contains(strings.ToLower(c.PhoneNumber), f) ||
		strings.Contains(strings.ToLower(preview(c)), f)
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{"  NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.HeaderFg).
			SetBackgroundColor(cl.theme.HeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.visible = cl.visible[:0]
	for _, c := range cl.convs {
		if cl.matches(c) {
			cl.visible = append(cl.visible, c)
		}
	}

	for i, c := range cl.visible {
		row := i + 1
		marker := " "
		color := cl.theme.Fg
		if c.Unread {
			marker = "*"
			color = cl.theme.Unread
		}
		name := marker + " " + tview.Escape(sanitizeForTerminal(c.Name))
		last := tview.Escape(sanitizeForTerminal(oneLine(preview(c))))

		cl.SetCell(row, 0, tview.NewTableCell(name).SetExpansion(1).SetMaxWidth(32).SetTextColor(color))
		cl.SetCell(row, 1, tview.NewTableCell(" "+last).SetExpansion(2).SetTextColor(cl.theme.Fg))
		cl.SetCell(row, 2, tview.NewTableCell(relativeTime(activityTime(c))).SetTextColor(cl.theme.Fg).SetAlign(tview.AlignRight))
	}

	if len(cl.visible) == 0 {
		cl.SetCell(1, 0, tview.NewTableCell("  "+tview.Escape(cl.empty)).SetSelectable(false).SetTextColor(cl.theme.Warn))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// Selected returns the uuid of the currently selected conversation.
func (cl *ConversationList) Selected() string {
	row, _ := cl.GetSelection()
	return cl.ByIndex(row)
}

// ByIndex returns the uuid of the Nth visible conversation (1-based).
func (cl *ConversationList) ByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].UUID
}

func (cl *ConversationList) selectUUID(uuid string) {
	for i, c := range cl.visible {
		if c.UUID == uuid {
			cl.Select(i+1, 0)
			return
		}
	}
	if len(cl.visible) > 0 {
		row, _ := cl.GetSelection()
		cl.Select(max(1, min(row, len(cl.visible))), 0)
	}
}

func preview(c *rpc.Conversation) string {
	if c.LastMessage == nil {
		return ""
	}
	return c.LastMessage.Preview
}
