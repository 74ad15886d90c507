package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/matheus3301/inbox/internal/validation"
	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"
)

// ContactView shows a contact's details with an editable name and a QR code
// for dialing the phone number.
type ContactView struct {
	*tview.Flex
	theme   *ui.Theme
	name    *tview.InputField
	problem *tview.TextView
	details *tview.TextView
	uuid    string
	onSave  func(uuid, name string)
}

// NewContactView creates a new contact page.
func NewContactView(theme *ui.Theme) *ContactView {
	name := tview.NewInputField().
		SetLabel(" Name: ").
		SetFieldWidth(validation.MaxNameLength / 2)
	name.SetBackgroundColor(theme.Bg)
	name.SetFieldBackgroundColor(theme.Bg)
	name.SetFieldTextColor(theme.Fg)
	name.SetLabelColor(theme.Key)

	problem := tview.NewTextView().SetDynamicColors(true)
	problem.SetBackgroundColor(theme.Bg)

	details := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	details.SetBackgroundColor(theme.Bg)
	details.SetTextColor(theme.Fg)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(name, 1, 0, true).
		AddItem(problem, 1, 0, false).
		AddItem(details, 0, 1, false)
	flex.SetBorder(true)
	flex.SetBorderColor(theme.Border)
	flex.SetBackgroundColor(theme.Bg)
	flex.SetTitle(" Contact ")
	flex.SetTitleColor(theme.Title)

	cv := &ContactView{
		Flex:    flex,
		theme:   theme,
		name:    name,
		problem: problem,
		details: details,
	}

	name.SetChangedFunc(func(text string) { cv.validate(text) })
	name.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || cv.onSave == nil {
			return
		}
		if cv.validate(name.GetText()) {
			cv.onSave(cv.uuid, validation.Sanitize(name.GetText()))
		}
	})

	return cv
}

// Name implements ui.View.
func (cv *ContactView) Name() string { return "Contact" }

// SetOnSave sets the callback for a valid rename.
func (cv *ContactView) SetOnSave(fn func(uuid, name string)) {
	cv.onSave = fn
}

// NameField returns the name input (for focus management).
func (cv *ContactView) NameField() *tview.InputField {
	return cv.name
}

// UUID returns the uuid of the contact shown.
func (cv *ContactView) UUID() string {
	return cv.uuid
}

// Update renders the conversation's contact details.
func (cv *ContactView) Update(c *rpc.Conversation) {
	cv.details.Clear()
	if c == nil {
		return
	}
	if c.UUID != cv.uuid {
		cv.name.SetText(c.Name)
	}
	cv.uuid = c.UUID
	cv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(c.Name)))

	fg := ui.Tag(cv.theme.Fg)
	ct := ui.Tag(cv.theme.Accent)
	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(cv.details, " [%s::b]%-9s[-:-:-] [%s]%s[-]\n", fg, label+":", ct, tview.Escape(value))
	}

	_, _ = fmt.Fprintln(cv.details)
	row("Phone", c.PhoneNumber)
	row("Created", c.CreatedAt)
	row("Closed", c.ClosedAt)
	row("Source", c.Source)
	row("UUID", c.UUID)

	if uri := telURI(c.PhoneNumber); uri != "" {
		_, _ = fmt.Fprintf(cv.details, "\n [::d]Scan to call %s[-:-:-]\n\n%s", tview.Escape(c.PhoneNumber), renderQR(uri))
	}
}

// ShowError displays a rename failure under the name field.
func (cv *ContactView) ShowError(msg string) {
	cv.problem.SetText(fmt.Sprintf(" [%s]%s[-]", ui.Tag(cv.theme.Err), tview.Escape(msg)))
}

// validate shows the first failing name rule and reports whether text is valid.
func (cv *ContactView) validate(text string) bool {
	res := validation.ValidateName(validation.Sanitize(text))
	if res.Valid {
		cv.problem.Clear()
		return true
	}
	cv.ShowError(res.Err.Error())
	return false
}

// telURI builds a tel: link keeping only the dialable characters of phone.
func telURI(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.String() == "+" {
		return ""
	}
	return "tel:" + b.String()
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := range cols {
			top := bitmap[y][x]
			bot := y+1 < rows && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
