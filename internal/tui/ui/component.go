package ui

import "github.com/rivo/tview"

// View is a page the app navigates to. Name is shown in the breadcrumbs.
type View interface {
	tview.Primitive
	Name() string
}
