package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// DialogConfirmer asks for counter changes with a modal inside the page the
// user is typing in.
type DialogConfirmer struct {
	page playwright.Page
}

// NewDialogConfirmer returns a Confirmer bound to page.
func NewDialogConfirmer(page playwright.Page) *DialogConfirmer {
	return &DialogConfirmer{page: page}
}

// Confirm shows "domain: vFrom → vTo" and waits for the user's choice.
func (d *DialogConfirmer) Confirm(ctx context.Context, domain string, from, to uint16) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	title := fmt.Sprintf("Change password version for %s?", domain)
	detail := fmt.Sprintf("%s: v%d → v%d", domain, from, to)

	result, err := d.page.Evaluate(confirmScript, []interface{}{title, detail})
	if err != nil {
		return false, fmt.Errorf("confirmation dialog failed: %w", err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("confirmation dialog returned %T", result)
	}
	return ok, nil
}
