package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects what the prompt input does.
type PromptMode int

const (
	// PromptCommand runs a ":" command on Enter and offers completions.
	PromptCommand PromptMode = iota
	// PromptFilter filters the conversation list as the user types.
	PromptFilter
)

// Prompt is the command and filter input bar.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	complete func(text string) []string
	onChange func(mode PromptMode, text string)
	onSubmit func(mode PromptMode, text string)
	onCancel func(mode PromptMode)
}

// NewPrompt creates a hidden prompt.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.Key)
	input.SetBackgroundColor(theme.Bg)
	input.SetFieldBackgroundColor(theme.Bg)
	input.SetFieldTextColor(theme.Fg)
	input.SetLabelColor(theme.Key)

	p := &Prompt{InputField: input, theme: theme}

	input.SetChangedFunc(func(text string) {
		if p.onChange != nil {
			p.onChange(p.mode, text)
		}
	})
	input.SetAutocompleteFunc(func(text string) []string {
		if p.mode != PromptCommand || p.complete == nil || text == "" {
			return nil
		}
		return p.complete(text)
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			if p.onSubmit != nil {
				p.onSubmit(p.mode, p.GetText())
			}
		case tcell.KeyEscape:
			if p.onCancel != nil {
				p.onCancel(p.mode)
			}
		}
	})
	return p
}

// SetCompleter sets the command completion source.
func (p *Prompt) SetCompleter(fn func(text string) []string) { p.complete = fn }

// SetOnChange is called on every edit.
func (p *Prompt) SetOnChange(fn func(mode PromptMode, text string)) { p.onChange = fn }

// SetOnSubmit is called on Enter.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) { p.onSubmit = fn }

// SetOnCancel is called on Esc.
func (p *Prompt) SetOnCancel(fn func(mode PromptMode)) { p.onCancel = fn }

// Activate prepares the prompt for mode with initial text.
func (p *Prompt) Activate(mode PromptMode, initial string) {
	p.mode = mode
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter ")
	}
	p.SetText(initial)
}

// Mode returns the active mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}
