package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/starwell/voidvault-bridge/pkg/field"
	"github.com/starwell/voidvault-bridge/pkg/session"
)

// pageEvent is one report from the capture script.
type pageEvent struct {
	kind    string
	key     field.Key
	focused field.Candidate
}

// Tab is one Playwright page wired to a field controller. It implements
// field.Page.
type Tab struct {
	id       session.TabID
	page     playwright.Page
	sessions *session.Controller
	field    *field.Controller

	events chan pageEvent
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func newTab(id session.TabID, page playwright.Page, sessions *session.Controller) *Tab {
	return &Tab{
		id:       id,
		page:     page,
		sessions: sessions,
		events:   make(chan pageEvent, keyQueueSize),
		done:     make(chan struct{}),
	}
}

// ID returns the tab's session identifier.
func (t *Tab) ID() session.TabID {
	return t.id
}

// URL returns the page's current URL.
func (t *Tab) URL() string {
	return t.page.URL()
}

// Domain returns the lowercase hostname of the page.
func (t *Tab) Domain() string {
	return domainOf(t.page.URL())
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Candidates lists the page's password inputs from a snapshot of its HTML.
func (t *Tab) Candidates(ctx context.Context) ([]field.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := t.page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	return field.ParseCandidates(strings.NewReader(content))
}

func (t *Tab) Focus(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.page.Locator(selector).First().Focus(); err != nil {
		return fmt.Errorf("focus failed: %w", err)
	}
	return nil
}

func (t *Tab) SetValue(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.page.Locator(selector).First().Evaluate(setValueScript, value); err != nil {
		return fmt.Errorf("set value failed: %w", err)
	}
	return nil
}

func (t *Tab) SetIndicator(ctx context.Context, selector string, ind field.Indicator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	arg := map[string]interface{}{
		"Active":       ind.Active,
		"Preview":      ind.Preview,
		"MeetsMinimum": ind.MeetsMinimum,
		"Counter":      int(ind.Counter),
		"Kind":         ind.Kind.String(),
		"Error":        ind.Error,
	}
	if _, err := t.page.Locator(selector).First().Evaluate(setIndicatorScript, arg); err != nil {
		return fmt.Errorf("set indicator failed: %w", err)
	}
	return nil
}

func (t *Tab) SetCapturing(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.page.Evaluate(setCapturingScript, on); err != nil {
		return fmt.Errorf("set capturing failed: %w", err)
	}
	return nil
}

// onBinding runs on Playwright's dispatcher and must not block; events are
// handed to the tab worker.
func (t *Tab) onBinding(_ *playwright.BindingSource, args ...interface{}) interface{} {
	ev, err := decodeBinding(args)
	if err != nil {
		debugLog.Warnf("tab %s: %v", t.id, err)
		return nil
	}
	select {
	case <-t.done:
	case t.events <- ev:
	default:
		debugLog.Warnf("tab %s: event queue full, dropping %s", t.id, ev.kind)
	}
	return nil
}

func decodeBinding(args []interface{}) (pageEvent, error) {
	if len(args) == 0 {
		return pageEvent{}, fmt.Errorf("binding called without arguments")
	}
	kind, ok := args[0].(string)
	if !ok {
		return pageEvent{}, fmt.Errorf("binding kind is %T, not string", args[0])
	}
	ev := pageEvent{kind: kind}

	var payload []byte
	if len(args) > 1 && args[1] != nil {
		var err error
		if payload, err = json.Marshal(args[1]); err != nil {
			return pageEvent{}, fmt.Errorf("bad %s payload: %w", kind, err)
		}
	}

	switch kind {
	case eventKey:
		if payload == nil {
			return pageEvent{}, fmt.Errorf("key event without payload")
		}
		var k field.Key
		if err := json.Unmarshal(payload, &k); err != nil {
			return pageEvent{}, fmt.Errorf("bad key payload: %w", err)
		}
		ev.key = field.KeyFromName(k.Name)
		ev.key.Ctrl, ev.key.Alt, ev.key.Meta, ev.key.Shift = k.Ctrl, k.Alt, k.Meta, k.Shift
	case eventFocus:
		var c struct {
			Selector     string `json:"selector"`
			Type         string `json:"type"`
			Name         string `json:"name"`
			ID           string `json:"id"`
			Autocomplete string `json:"autocomplete"`
		}
		if payload == nil {
			return pageEvent{}, fmt.Errorf("focus event without payload")
		}
		if err := json.Unmarshal(payload, &c); err != nil {
			return pageEvent{}, fmt.Errorf("bad focus payload: %w", err)
		}
		ev.focused = field.Candidate{
			Selector:     c.Selector,
			Type:         c.Type,
			Name:         c.Name,
			ID:           c.ID,
			Autocomplete: c.Autocomplete,
		}
	case eventBlur, eventToggle, eventPreview:
	default:
		return pageEvent{}, fmt.Errorf("unknown page event %q", kind)
	}
	return ev, nil
}

// run processes page events in arrival order until the tab closes.
func (t *Tab) run(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case ev := <-t.events:
			if err := t.handle(ctx, ev); err != nil {
				debugLog.Warnf("tab %s: %s failed: %v", t.id, ev.kind, err)
			}
		}
	}
}

func (t *Tab) handle(ctx context.Context, ev pageEvent) error {
	switch ev.kind {
	case eventFocus:
		t.field.Focus(ev.focused)
	case eventBlur:
		return t.field.Blur()
	case eventToggle:
		return t.field.Toggle(ctx)
	case eventPreview:
		return t.field.Preview(ctx)
	case eventKey:
		return t.field.HandleKey(ctx, ev.key)
	}
	return nil
}

// onNavigated reports main-frame navigations to the session controller so
// a session bound to the old domain ends.
func (t *Tab) onNavigated(frame playwright.Frame) {
	if frame != t.page.MainFrame() {
		return
	}
	if err := t.sessions.Navigate(t.id, domainOf(frame.URL())); err != nil {
		debugLog.Warnf("tab %s: navigate: %v", t.id, err)
	}
}

// close stops the worker and ends the tab's session. It does not close the
// page.
func (t *Tab) close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
		if t.field != nil {
			t.field.Close()
		}
		if err := t.sessions.Deactivate(t.id); err != nil {
			debugLog.Warnf("tab %s: deactivate: %v", t.id, err)
		}
	})
}

// Done is closed once the tab has been closed.
func (t *Tab) Done() <-chan struct{} {
	return t.done
}

var _ field.Page = (*Tab)(nil)
