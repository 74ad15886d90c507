package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/message"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays messages and a composer for a single conversation.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	name     string
	uuid     string
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.Border)
	messages.SetBackgroundColor(theme.Bg)
	messages.SetTextColor(theme.Fg)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.Title)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.Border)
	composer.SetBackgroundColor(theme.Bg)
	composer.SetFieldBackgroundColor(theme.Bg)
	composer.SetFieldTextColor(theme.Fg)
	composer.SetLabelColor(theme.Key)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.Title)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if strings.TrimSpace(text) != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements ui.View.
func (mt *MessageThread) Name() string {
	if mt.name != "" {
		return mt.name
	}
	return "Messages"
}

// SetConversation sets the conversation shown and clears the old thread.
func (mt *MessageThread) SetConversation(uuid, name string) {
	if mt.uuid != uuid {
		mt.messages.Clear()
		mt.messages.SetText("[::d]Loading...[-:-:-]")
	}
	mt.uuid = uuid
	mt.name = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
}

// UUID returns the current conversation uuid.
func (mt *MessageThread) UUID() string {
	return mt.uuid
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders msgs, which arrive oldest first.
func (mt *MessageThread) Update(msgs []*rpc.Message) {
	mt.messages.Clear()
	if len(msgs) == 0 {
		_, _ = fmt.Fprint(mt.messages, "[::d]No messages yet[-:-:-]")
		return
	}

	for _, m := range msgs {
		_, _ = fmt.Fprint(mt.messages, mt.formatMessage(m))
	}
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) formatMessage(m *rpc.Message) string {
	th := mt.theme
	sender, senderColor := mt.name, th.Incoming
	if m.FromMe {
		sender, senderColor = "You", th.Outgoing
	}

	var tags []string
	if m.IsNote {
		tags = append(tags, fmt.Sprintf("[%s]note[-]", ui.Tag(th.Note)))
	}
	if m.IsBot {
		tags = append(tags, fmt.Sprintf("[%s]%s[-]", ui.Tag(th.Bot), tview.Escape(message.ExtractBotLabel(m.Text))))
	}
	if n := len(m.Attachments); n > 0 {
		tags = append(tags, fmt.Sprintf("[%s]%d attachment(s)[-]", ui.Tag(th.Attachment), n))
	}
	ticks := ""
	if m.FromMe {
		ticks = fmt.Sprintf(" [%s]✓[-]", ui.Tag(th.Muted))
		if m.Read {
			ticks = fmt.Sprintf(" [%s]✓✓[-]", ui.Tag(th.ReadTick))
		}
	}

	header := fmt.Sprintf("[%s::b]%s[-:-:-] [%s]%s[-]%s",
		ui.Tag(senderColor), tview.Escape(sanitizeForTerminal(sender)), ui.Tag(th.Muted), m.Time, ticks)
	if len(tags) > 0 {
		header += " " + strings.Join(tags, " ")
	}
	return header + "\n" + tview.Escape(sanitizeForTerminal(m.Text)) + "\n\n"
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
