package field

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/starwell/voidvault-bridge/pkg/logging"
	"github.com/starwell/voidvault-bridge/pkg/session"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("field")
	if err != nil {
		debugLog.Warnf("Failed to initialize field logger, using stderr fallback: %v", err)
	}
}

// renderTimeout bounds each page update made while rendering an event.
const renderTimeout = 5 * time.Second

// ErrNoCandidates is returned by Toggle when nothing on the page can be
// focused.
var ErrNoCandidates = errors.New("no password field on the page")

// Sessions is the part of session.Controller a field controller drives.
type Sessions interface {
	Activate(ctx context.Context, tab session.TabID, domain string) (session.State, error)
	ActivatePreview(ctx context.Context, tab session.TabID) (session.State, error)
	CancelPreview(ctx context.Context, tab session.TabID) error
	Commit(ctx context.Context, tab session.TabID) (uint16, error)
	Finalize(tab session.TabID) error
	Deactivate(tab session.TabID) error
	Input(tab session.TabID, r rune) error
	Reset(tab session.TabID) error
	State(tab session.TabID) (session.State, bool)
	Subscribe(fn session.EventHandler) func()
}

// Controller binds one tab's page to its session.
type Controller struct {
	tab      session.TabID
	page     Page
	sessions Sessions
	confirm  Confirmer

	mu      sync.Mutex
	focused string
	kind    Kind

	unsubscribe func()
}

// NewController renders tab's session events into page until Close. A nil
// confirm declines every counter change, so preview can only be cancelled.
func NewController(tab session.TabID, page Page, sessions Sessions, confirm Confirmer) *Controller {
	c := &Controller{
		tab:      tab,
		page:     page,
		sessions: sessions,
		confirm:  confirm,
	}
	c.unsubscribe = sessions.Subscribe(c.render)
	return c
}

// Tab returns the tab this controller serves.
func (c *Controller) Tab() session.TabID {
	return c.tab
}

// Focused returns the selector of the focused field, or "".
func (c *Controller) Focused() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focused
}

// Focus records that the page focused the field at selector.
func (c *Controller) Focus(cand Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focused = cand.Selector
	c.kind = Classify(cand)
}

// Blur records that the focused field lost focus. A running session is
// finalized so the field keeps what was generated.
func (c *Controller) Blur() error {
	c.mu.Lock()
	c.focused = ""
	c.mu.Unlock()

	if _, ok := c.sessions.State(c.tab); !ok {
		return nil
	}
	return c.sessions.Finalize(c.tab)
}

// Toggle activates the session for the page's domain, focusing the first
// candidate field when none is focused. Toggling an active session
// finalizes it.
func (c *Controller) Toggle(ctx context.Context) error {
	if _, ok := c.sessions.State(c.tab); ok {
		return c.sessions.Finalize(c.tab)
	}

	if c.Focused() == "" {
		candidates, err := c.page.Candidates(ctx)
		if err != nil {
			return fmt.Errorf("failed to list fields: %w", err)
		}
		if len(candidates) == 0 {
			return ErrNoCandidates
		}
		if err := c.page.Focus(ctx, candidates[0].Selector); err != nil {
			return fmt.Errorf("failed to focus field: %w", err)
		}
		c.Focus(candidates[0])
	}

	_, err := c.sessions.Activate(ctx, c.tab, c.page.Domain())
	return err
}

// Preview moves to the next counter for the page's domain, activating
// first when needed.
func (c *Controller) Preview(ctx context.Context) error {
	if _, ok := c.sessions.State(c.tab); !ok {
		if err := c.Toggle(ctx); err != nil {
			return err
		}
	}
	_, err := c.sessions.ActivatePreview(ctx, c.tab)
	return err
}

// HandleKey routes a keydown to the session. Keys are ignored while the tab
// has no session.
func (c *Controller) HandleKey(ctx context.Context, k Key) error {
	st, ok := c.sessions.State(c.tab)
	if !ok {
		return nil
	}

	switch route(k) {
	case actionInput:
		return c.sessions.Input(c.tab, k.Rune)
	case actionReset:
		return c.sessions.Reset(c.tab)
	case actionSubmit:
		if st.Preview {
			return c.submitPreview(ctx, st)
		}
		return c.sessions.Finalize(c.tab)
	case actionEscape:
		if st.Preview {
			return c.sessions.CancelPreview(ctx, c.tab)
		}
		return c.sessions.Deactivate(c.tab)
	case actionFinalize:
		return c.sessions.Finalize(c.tab)
	}
	return nil
}

// submitPreview commits the previewed counter once the user approves a real
// change, then finalizes. A declined change cancels the preview.
func (c *Controller) submitPreview(ctx context.Context, st session.State) error {
	if st.ActiveCounter != st.SavedCounter {
		approved := false
		if c.confirm != nil {
			ok, err := c.confirm.Confirm(ctx, st.Domain, st.SavedCounter, st.ActiveCounter)
			if err != nil {
				return fmt.Errorf("confirmation failed: %w", err)
			}
			approved = ok
		}
		if !approved {
			debugLog.Infof("counter change for %s declined", st.Domain)
			return c.sessions.CancelPreview(ctx, c.tab)
		}
	}

	if _, err := c.sessions.Commit(ctx, c.tab); err != nil {
		return err
	}
	return c.sessions.Finalize(c.tab)
}

// Close stops rendering events.
func (c *Controller) Close() {
	c.unsubscribe()
}

func (c *Controller) render(e *session.Event) {
	if e.Tab != c.tab {
		return
	}

	c.mu.Lock()
	selector, kind := c.focused, c.kind
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()

	ind := Indicator{
		Active:       e.State.Active,
		Preview:      e.State.Preview,
		MeetsMinimum: true,
		Counter:      e.State.ActiveCounter,
		Kind:         kind,
	}

	var err error
	switch e.Type {
	case session.EventTypeActivated:
		err = errors.Join(
			c.page.SetCapturing(ctx, true),
			c.indicate(ctx, selector, ind),
		)
	case session.EventTypeOutput:
		ind.MeetsMinimum = e.MeetsMinimum
		if selector != "" {
			err = c.page.SetValue(ctx, selector, e.Text)
		}
		err = errors.Join(err, c.indicate(ctx, selector, ind))
	case session.EventTypeCleared:
		if selector != "" {
			err = c.page.SetValue(ctx, selector, "")
		}
	case session.EventTypeStateChanged:
		err = c.indicate(ctx, selector, ind)
	case session.EventTypeError:
		if e.Err != nil {
			ind.Error = e.Err.Error()
		}
		err = c.indicate(ctx, selector, ind)
	case session.EventTypeDeactivated:
		err = errors.Join(
			c.indicate(ctx, selector, Indicator{Kind: kind}),
			c.page.SetCapturing(ctx, false),
		)
	}
	if err != nil {
		debugLog.Warnf("rendering %s for tab %s: %v", e.Type, c.tab, err)
	}
}

func (c *Controller) indicate(ctx context.Context, selector string, ind Indicator) error {
	if selector == "" {
		return nil
	}
	return c.page.SetIndicator(ctx, selector, ind)
}
