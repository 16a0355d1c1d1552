// Package session owns the per-tab generator sessions: it activates them,
// routes keystrokes to the generator, interprets its replies and emits
// events for whoever renders the field.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/starwell/voidvault-bridge/pkg/logging"
	"github.com/starwell/voidvault-bridge/pkg/native"
	"github.com/starwell/voidvault-bridge/pkg/policy"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("session")
	if err != nil {
		debugLog.Warnf("Failed to initialize session logger, using stderr fallback: %v", err)
	}
}

// DefaultTimeout bounds requests and one-shot queries unless configured.
const DefaultTimeout = 5 * time.Second

// RuleSource looks up the locally stored policy override for a domain.
// rules.Store implements it.
type RuleSource interface {
	Get(domain string) (*policy.Policy, error)
}

// Config wires a Controller to its collaborators.
type Config struct {
	// Dialer opens one generator channel per activation.
	Dialer native.Dialer

	// Rules supplies per-domain overrides. Nil means generator defaults only.
	Rules RuleSource

	// Excluded reports domains activation is refused for. Nil allows all.
	Excluded func(domain string) bool

	// RequestTimeout bounds waits on a session's channel.
	RequestTimeout time.Duration

	// QueryTimeout bounds one-shot exchanges used without a session.
	QueryTimeout time.Duration
}

// EventHandler receives controller events. Handlers run on a dedicated
// goroutine, one event at a time, and may call back into the Controller.
type EventHandler func(*Event)

type subscriber struct {
	id int
	fn EventHandler
}

// Controller serializes every session operation, inbound message and
// disconnect on a single loop goroutine.
type Controller struct {
	cfg Config

	// sessions is only touched on the loop goroutine.
	sessions map[TabID]*Session

	tasks        *queue[func()]
	events       *queue[*Event]
	loopDone     chan struct{}
	dispatchDone chan struct{}
	closers      sync.WaitGroup

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int

	closeOnce sync.Once
}

// NewController starts the controller loop.
func NewController(cfg Config) *Controller {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultTimeout
	}

	c := &Controller{
		cfg:          cfg,
		sessions:     make(map[TabID]*Session),
		tasks:        newQueue[func()](),
		events:       newQueue[*Event](),
		loopDone:     make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}

	go func() {
		defer close(c.loopDone)
		c.tasks.drain(func(task func()) { task() })
	}()
	go func() {
		defer close(c.dispatchDone)
		c.events.drain(c.dispatch)
	}()
	return c
}

// Subscribe registers fn for every event and returns a function that
// removes it.
func (c *Controller) Subscribe(fn EventHandler) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) dispatch(e *Event) {
	c.subMu.Lock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subMu.Unlock()

	for _, s := range subs {
		s.fn(e)
	}
}

// call runs fn on the loop and waits for it.
func (c *Controller) call(fn func()) error {
	done := make(chan struct{})
	if !c.tasks.push(func() {
		defer close(done)
		fn()
	}) {
		return ErrControllerClosed
	}
	<-done
	return nil
}

// post runs fn on the loop without waiting.
func (c *Controller) post(fn func()) {
	c.tasks.push(fn)
}

func (c *Controller) emit(e *Event) {
	c.events.push(e)
}

// await waits for latch, bounded by ctx and the request timeout. On timeout
// only this latch is settled; the pending entry stays queued so the late
// response still lands on the right request.
func (c *Controller) await(ctx context.Context, latch *native.Latch[reply]) (native.Message, error) {
	if latch == nil {
		return nil, nil
	}
	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-latch.Done():
	case <-timer.C:
		latch.Fire(reply{err: native.ErrTimeout})
	case <-ctx.Done():
		latch.Fire(reply{err: ctx.Err()})
	}
	r := latch.Value()
	return r.msg, r.err
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// Activate starts a session for tab on domain and waits for the generator
// to report ready. Any previous session of the tab is torn down first.
func (c *Controller) Activate(ctx context.Context, tab TabID, domain string) (State, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return State{}, errors.New("cannot activate without a domain")
	}
	if c.cfg.Excluded != nil && c.cfg.Excluded(domain) {
		return State{}, ErrExcludedDomain
	}

	if err := c.call(func() {
		if s := c.sessions[tab]; s != nil {
			c.teardown(s, ReasonSuperseded, false, nil)
		}
	}); err != nil {
		return State{}, err
	}

	ch, err := c.cfg.Dialer.Dial(ctx)
	if err != nil {
		if errors.Is(err, native.ErrChannelOpen) {
			return State{}, err
		}
		return State{}, fmt.Errorf("%w: %v", native.ErrChannelOpen, err)
	}

	var (
		latch   *native.Latch[reply]
		sendErr error
	)
	if err := c.call(func() {
		if s := c.sessions[tab]; s != nil {
			c.teardown(s, ReasonSuperseded, false, nil)
		}
		s := newSession(tab, domain, ch)
		c.sessions[tab] = s
		ch.OnMessage(func(m native.Message) {
			c.post(func() { c.handleMessage(tab, ch, m) })
		})
		ch.OnDisconnect(func(err error) {
			c.post(func() { c.handleDisconnect(tab, ch, err) })
		})
		ch.Start()

		latch, sendErr = s.send(native.Init(domain), true)
		if sendErr != nil {
			c.teardown(s, ReasonDeactivate, false, sendErr)
		}
	}); err != nil {
		ch.Close()
		return State{}, err
	}
	if sendErr != nil {
		return State{}, sendErr
	}
	debugLog.Infof("activating tab %s on %s", tab, domain)

	if _, err := c.await(ctx, latch); err != nil {
		c.call(func() {
			if s := c.sessions[tab]; s != nil && s.channel == ch {
				c.teardown(s, ReasonDeactivate, false, err)
			}
		})
		return State{}, err
	}

	st, _ := c.State(tab)
	return st, nil
}

// ActivatePreview moves the session to the next counter without committing
// it, and clears the field.
func (c *Controller) ActivatePreview(ctx context.Context, tab TabID) (State, error) {
	var (
		latch *native.Latch[reply]
		opErr error
	)
	if err := c.call(func() {
		s := c.sessions[tab]
		if s == nil {
			opErr = ErrNoSession
			return
		}
		latch, opErr = s.send(native.ActivatePreview(s.domain), true)
	}); err != nil {
		return State{}, err
	}
	if opErr != nil {
		return State{}, opErr
	}
	if _, err := c.await(ctx, latch); err != nil {
		return State{}, err
	}
	st, _ := c.State(tab)
	return st, nil
}

// CancelPreview reverts to the saved counter. It is a no-op outside preview.
func (c *Controller) CancelPreview(ctx context.Context, tab TabID) error {
	var (
		latch *native.Latch[reply]
		opErr error
	)
	if err := c.call(func() {
		s := c.sessions[tab]
		if s == nil {
			opErr = ErrNoSession
			return
		}
		if !s.preview {
			return
		}
		latch, opErr = s.send(native.CancelPreview(), true)
		if opErr != nil {
			return
		}
		s.revert()
		s.shifter.Reset()
		st := s.state()
		c.emit(NewClearedEvent(st))
		c.emit(NewStateChangedEvent(st))
	}); err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}
	_, err := c.await(ctx, latch)
	return err
}

// Commit makes the previewed counter the saved one and returns it.
func (c *Controller) Commit(ctx context.Context, tab TabID) (uint16, error) {
	var (
		latch *native.Latch[reply]
		opErr error
	)
	if err := c.call(func() {
		s := c.sessions[tab]
		switch {
		case s == nil:
			opErr = ErrNoSession
		case !s.preview:
			opErr = ErrNotInPreview
		default:
			latch, opErr = s.send(native.CommitIncrement(s.domain), true)
		}
	}); err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, opErr
	}

	msg, err := c.await(ctx, latch)
	if err != nil {
		return 0, err
	}
	committed, ok := msg.(native.Committed)
	if !ok {
		return 0, fmt.Errorf("unexpected %s reply to commit", native.Kind(msg))
	}
	return committed.Counter, nil
}

// Finalize tells the generator the password is complete and ends the
// session.
func (c *Controller) Finalize(tab TabID) error {
	var opErr error
	if err := c.call(func() {
		s := c.sessions[tab]
		if s == nil {
			opErr = ErrNoSession
			return
		}
		c.teardown(s, ReasonFinalize, true, nil)
	}); err != nil {
		return err
	}
	return opErr
}

// Deactivate ends the session without notifying the generator. It is a
// no-op for a tab without a session.
func (c *Controller) Deactivate(tab TabID) error {
	return c.call(func() {
		if s := c.sessions[tab]; s != nil {
			c.teardown(s, ReasonDeactivate, false, nil)
		}
	})
}

// SetCounter stores n as domain's counter. With a live session on tab the
// session's channel carries the request; otherwise a one-shot query does.
func (c *Controller) SetCounter(ctx context.Context, tab TabID, domain string, n int) error {
	if n < 0 || n > policy.MaxCounter {
		return ErrInvalidVersion
	}
	domain = normalizeDomain(domain)

	var (
		live  bool
		latch *native.Latch[reply]
		opErr error
	)
	if err := c.call(func() {
		s := c.sessions[tab]
		if s == nil {
			return
		}
		live = true
		latch, opErr = s.send(native.SetCounterRequest(domain, uint16(n)), true)
	}); err != nil {
		return err
	}

	if !live {
		return native.SetCounter(ctx, c.cfg.Dialer, domain, uint16(n), c.cfg.QueryTimeout)
	}
	if opErr != nil {
		return opErr
	}
	_, err := c.await(ctx, latch)
	return err
}

// GetCounter asks the generator for domain's stored counter with a one-shot
// query. ok is false when the domain has no stored counter.
func (c *Controller) GetCounter(ctx context.Context, domain string) (counter uint16, ok bool, err error) {
	return native.GetCounter(ctx, c.cfg.Dialer, normalizeDomain(domain), c.cfg.QueryTimeout)
}

// Input shifts r for the session's domain and position and sends it.
func (c *Controller) Input(tab TabID, r rune) error {
	var opErr error
	if err := c.call(func() {
		s := c.sessions[tab]
		if s == nil {
			opErr = ErrNoSession
			return
		}
		_, opErr = s.send(native.Char(s.shifter.Next(r)), false)
	}); err != nil {
		return err
	}
	return opErr
}

// Reset restarts the password on the generator side and clears the field.
func (c *Controller) Reset(tab TabID) error {
	var opErr error
	if err := c.call(func() {
		s := c.sessions[tab]
		if s == nil {
			opErr = ErrNoSession
			return
		}
		opErr = c.reset(s)
	}); err != nil {
		return err
	}
	return opErr
}

func (c *Controller) reset(s *Session) error {
	if _, err := s.send(native.Reset(), false); err != nil {
		return err
	}
	s.shifter.Reset()
	c.emit(NewClearedEvent(s.state()))
	return nil
}

// Navigate records that tab now shows domain. A session on another domain
// is deactivated, so output arriving afterwards is dropped.
func (c *Controller) Navigate(tab TabID, domain string) error {
	domain = normalizeDomain(domain)
	return c.call(func() {
		if s := c.sessions[tab]; s != nil && s.domain != domain {
			c.teardown(s, ReasonNavigation, false, nil)
		}
	})
}

// ResetDomain resets every session on domain, for use after its policy
// changes.
func (c *Controller) ResetDomain(domain string) error {
	domain = normalizeDomain(domain)
	return c.call(func() {
		for _, s := range c.sessions {
			if s.domain != domain {
				continue
			}
			if err := c.reset(s); err != nil {
				debugLog.Warnf("reset after rules change failed for tab %s: %v", s.tab, err)
			}
		}
	})
}

// State returns tab's session snapshot; ok is false when it has none.
func (c *Controller) State(tab TabID) (st State, ok bool) {
	c.call(func() {
		if s := c.sessions[tab]; s != nil {
			st, ok = s.state(), true
		}
	})
	return st, ok
}

// Close ends every session, stops the loop and delivers the remaining
// events. It is safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.call(func() {
			for _, s := range c.sessions {
				c.teardown(s, ReasonShutdown, false, nil)
			}
		})
		c.tasks.close()
		<-c.loopDone
		c.closers.Wait()
		c.events.close()
		<-c.dispatchDone
	})
	return nil
}

// teardown removes s and releases its channel. Runs on the loop.
func (c *Controller) teardown(s *Session, reason Reason, finalize bool, cause error) {
	delete(c.sessions, s.tab)
	if finalize {
		if err := s.channel.Send(native.Finalize()); err != nil {
			debugLog.Warnf("finalize for tab %s not delivered: %v", s.tab, err)
		}
	}
	s.failAll(ErrNoSession)

	ch := s.channel
	c.closers.Add(1)
	go func() {
		defer c.closers.Done()
		if err := ch.Close(); err != nil {
			debugLog.Warnf("closing channel for tab %s: %v", s.tab, err)
		}
	}()

	debugLog.Infof("session for tab %s ended: %s", s.tab, reason)
	c.emit(NewDeactivatedEvent(s.tab, s.domain, reason, cause))
}

func (c *Controller) handleDisconnect(tab TabID, ch native.Channel, err error) {
	s := c.sessions[tab]
	if s == nil || s.channel != ch {
		return
	}
	if err == nil {
		err = native.ErrDisconnected
	}
	delete(c.sessions, tab)
	s.failAll(native.ErrDisconnected)
	debugLog.Warnf("generator for tab %s disconnected: %v", tab, err)
	c.emit(NewDeactivatedEvent(tab, s.domain, ReasonDisconnect, err))
}

func (c *Controller) handleMessage(tab TabID, ch native.Channel, m native.Message) {
	s := c.sessions[tab]
	if s == nil || s.channel != ch {
		debugLog.Debugf("dropping %s from a stale channel for tab %s", native.Kind(m), tab)
		return
	}

	switch m := m.(type) {
	case native.Output:
		c.handleOutput(s, m)
		return
	case native.Error:
		genErr := &native.GeneratorError{Message: m.Message}
		if p := s.pop(); p != nil && p.latch != nil {
			p.latch.Fire(reply{err: genErr})
			return
		}
		debugLog.Warnf("generator error for tab %s: %s", tab, m.Message)
		c.emit(NewErrorEvent(s.state(), genErr))
		return
	}

	p := s.pop()
	if p == nil {
		debugLog.Warnf("unsolicited %s for tab %s", native.Kind(m), tab)
	}
	c.apply(s, p, m)
	if p != nil && p.latch != nil {
		p.latch.Fire(reply{msg: m})
	}
}

// apply folds a response into the session. The generator's values are
// authoritative even when the caller has already timed out.
func (c *Controller) apply(s *Session, p *pending, m native.Message) {
	switch m := m.(type) {
	case native.Ready:
		s.saved, s.active, s.preview = m.SavedCounter, m.SavedCounter, false
		s.ready = true
		s.defaults = m.Policy()
		s.shifter.Reset()
		c.emit(NewActivatedEvent(s.state()))
	case native.Preview:
		s.saved, s.active, s.preview = m.SavedCounter, m.ActiveCounter, true
		s.ready = true
		s.defaults = m.Policy()
		s.shifter.Reset()
		st := s.state()
		c.emit(NewClearedEvent(st))
		c.emit(NewStateChangedEvent(st))
	case native.Committed:
		s.saved, s.active, s.preview = m.Counter, m.Counter, false
		c.emit(NewStateChangedEvent(s.state()))
	case native.Cancelled:
		s.saved, s.active, s.preview = m.Counter, m.Counter, false
		c.emit(NewStateChangedEvent(s.state()))
	case native.Success:
		if p == nil || p.req.Type != native.TypeSetCounter || p.req.Counter == nil || p.req.Domain != s.domain {
			return
		}
		n := *p.req.Counter
		s.saved, s.active, s.preview = n, n, false
		s.shifter.Reset()
		st := s.state()
		c.emit(NewClearedEvent(st))
		c.emit(NewStateChangedEvent(st))
	}
}

func (c *Controller) handleOutput(s *Session, m native.Output) {
	if !s.ready {
		debugLog.Debugf("dropping output for tab %s before ready", s.tab)
		return
	}
	if s.clearing > 0 {
		debugLog.Debugf("dropping output for tab %s typed before a reset", s.tab)
		return
	}

	var local *policy.Policy
	if c.cfg.Rules != nil {
		p, err := c.cfg.Rules.Get(s.domain)
		if err != nil {
			debugLog.Warnf("rules lookup for %s failed, using generator defaults: %v", s.domain, err)
		} else {
			local = p
		}
	}
	effective := policy.Effective(local, s.defaults)
	text := policy.Normalize(m.Text, effective)
	c.emit(NewOutputEvent(s.state(), text, policy.MeetsMinimum(text, effective)))
}
