package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashLifetime = map[FlashLevel]time.Duration{
	FlashInfo: 5 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

// FlashMessage is a notification that expires.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// Flash holds the current notification. It is safe for concurrent use.
type Flash struct {
	mu      sync.RWMutex
	current FlashMessage
	changed chan struct{}
	now     func() time.Time
}

// NewFlash creates an empty flash.
func NewFlash() *Flash {
	return &Flash{
		changed: make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Infof shows an info message.
func (f *Flash) Infof(format string, args ...any) {
	f.set(FlashInfo, fmt.Sprintf(format, args...))
}

// Warnf shows a warning.
func (f *Flash) Warnf(format string, args ...any) {
	f.set(FlashWarn, fmt.Sprintf(format, args...))
}

// Err shows "what: reason". Unavailable errors (daemon gone, remote API
// temporarily failing) are shown as warnings since they clear on their own.
func (f *Flash) Err(what string, err error) {
	level := FlashErr
	if status.Code(err) == codes.Unavailable {
		level = FlashWarn
	}
	f.set(level, what+": "+ErrorMessage(err))
}

// Current returns the live message, or nil once it expired.
func (f *Flash) Current() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Changed is signalled after every new message.
func (f *Flash) Changed() <-chan struct{} {
	return f.changed
}

func (f *Flash) set(level FlashLevel, text string) {
	f.mu.Lock()
	f.current = FlashMessage{Text: text, Level: level, Expires: f.now().Add(flashLifetime[level])}
	f.mu.Unlock()
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

// ErrorMessage returns the human-readable part of err, unwrapping gRPC status.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}

// FlashBar renders the current flash message.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates an empty flash bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.Bg)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update shows msg, or clears the bar for nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	color := fb.theme.Info
	switch msg.Level {
	case FlashWarn:
		color = fb.theme.Warn
	case FlashErr:
		color = fb.theme.Err
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", Tag(color), tview.Escape(msg.Text))
}
