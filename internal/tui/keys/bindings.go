// Package keys maps key events to actions per page.
package keys

import (
	"slices"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/tui/ui"
)

// Action is one keybinding.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	// Visible actions appear in the menu; Label overrides the key shown there.
	Visible bool
	Label   string
}

// Matches reports whether ev triggers the action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// KeyLabel is the key as shown to the user.
func (a *Action) KeyLabel() string {
	switch {
	case a.Label != "":
		return a.Label
	case a.Key == tcell.KeyRune:
		return string(a.Rune)
	default:
		if name, ok := tcell.KeyNames[a.Key]; ok {
			return name
		}
		return "?"
	}
}

type binding struct {
	name   string
	action *Action
}

// Registry holds bindings in registration order. Page bindings shadow global
// ones bound to the same key.
type Registry struct {
	global []binding
	views  map[string][]binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string][]binding)}
}

// AddGlobal registers a binding active on every page. A binding with the
// same name is replaced.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.global = put(r.global, name, action)
}

// AddView registers a binding for one page.
func (r *Registry) AddView(view, name string, action *Action) {
	r.views[view] = put(r.views[view], name, action)
}

func put(bs []binding, name string, action *Action) []binding {
	if i := slices.IndexFunc(bs, func(b binding) bool { return b.name == name }); i >= 0 {
		bs[i].action = action
		return bs
	}
	return append(bs, binding{name: name, action: action})
}

// Hints lists the visible bindings of view followed by the global ones.
func (r *Registry) Hints(view string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, b := range slices.Concat(r.views[view], r.global) {
		if !b.action.Visible {
			continue
		}
		label := b.action.KeyLabel()
		hints = append(hints, ui.MenuHint{
			Key:         label,
			Description: b.action.Description,
			Numeric:     label[0] >= '0' && label[0] <= '9',
		})
	}
	return hints
}

// HandleEvent runs the first action of view, then of the global scope,
// matching ev. It reports whether one ran.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	for _, b := range slices.Concat(r.views[view], r.global) {
		if b.action.Matches(ev) {
			b.action.Handler()
			return true
		}
	}
	return false
}
