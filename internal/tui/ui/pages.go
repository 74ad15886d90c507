package ui

import "github.com/rivo/tview"

// Pages keeps a navigation trail over tview.Pages. The first entry is the
// root and is never popped.
type Pages struct {
	*tview.Pages
	views    map[string]View
	trail    []string
	onChange func(names []string)
}

// NewPages creates an empty page trail.
func NewPages() *Pages {
	return &Pages{
		Pages: tview.NewPages(),
		views: make(map[string]View),
	}
}

// SetOnChange sets a callback receiving the view names along the trail
// whenever it changes.
func (p *Pages) SetOnChange(fn func(names []string)) {
	p.onChange = fn
}

// Add registers a hidden page.
func (p *Pages) Add(id string, v View) {
	p.views[id] = v
	p.AddPage(id, v, true, false)
}

// Root clears the trail and shows id alone.
func (p *Pages) Root(id string) {
	for _, n := range p.trail {
		p.HidePage(n)
	}
	p.trail = []string{id}
	p.show(id)
}

// Open shows id on top of the trail. When id is already on the trail the
// pages above it are popped instead, so a page appears at most once.
func (p *Pages) Open(id string) {
	for i, n := range p.trail {
		if n == id {
			for _, above := range p.trail[i+1:] {
				p.HidePage(above)
			}
			p.trail = p.trail[:i+1]
			p.show(id)
			return
		}
	}
	if cur := p.Current(); cur != "" {
		p.HidePage(cur)
	}
	p.trail = append(p.trail, id)
	p.show(id)
}

// Back pops the top page. It reports the popped id, or false at the root.
func (p *Pages) Back() (string, bool) {
	if len(p.trail) <= 1 {
		return "", false
	}
	top := p.trail[len(p.trail)-1]
	p.HidePage(top)
	p.trail = p.trail[:len(p.trail)-1]
	p.show(p.Current())
	return top, true
}

// Current returns the id of the top page.
func (p *Pages) Current() string {
	if len(p.trail) == 0 {
		return ""
	}
	return p.trail[len(p.trail)-1]
}

// Refresh re-sends the trail names, for views whose Name changed.
func (p *Pages) Refresh() {
	if p.onChange == nil {
		return
	}
	names := make([]string, 0, len(p.trail))
	for _, id := range p.trail {
		if v, ok := p.views[id]; ok {
			names = append(names, v.Name())
		} else {
			names = append(names, id)
		}
	}
	p.onChange(names)
}

func (p *Pages) show(id string) {
	p.ShowPage(id)
	p.SendToFront(id)
	p.Refresh()
}
