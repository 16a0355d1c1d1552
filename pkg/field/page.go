// Package field binds generator sessions to password fields on a page: it
// tracks the focused field, routes key events to the session controller and
// renders session events back into the page.
package field

import (
	"context"
)

// Candidate is a password input found on a page.
type Candidate struct {
	// Selector locates the input for Page calls.
	Selector string

	Type         string
	Name         string
	ID           string
	Autocomplete string
}

// Indicator is the visual state drawn next to the focused field.
type Indicator struct {
	Active       bool
	Preview      bool
	MeetsMinimum bool
	Counter      uint16
	Kind         Kind
	Error        string
}

// Page is the DOM a Controller works against. SetValue must fire synthetic
// input and change events after assigning the value so frameworks that
// ignore direct assignment notice the change.
type Page interface {
	Domain() string
	Candidates(ctx context.Context) ([]Candidate, error)
	Focus(ctx context.Context, selector string) error
	SetValue(ctx context.Context, selector, value string) error
	SetIndicator(ctx context.Context, selector string, ind Indicator) error
	SetCapturing(ctx context.Context, on bool) error
}

// Confirmer asks the user to approve moving domain from one saved counter
// to another.
type Confirmer interface {
	Confirm(ctx context.Context, domain string, from, to uint16) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, domain string, from, to uint16) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, domain string, from, to uint16) (bool, error) {
	return f(ctx, domain, from, to)
}
