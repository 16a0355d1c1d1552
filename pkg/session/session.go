package session

import (
	"github.com/starwell/voidvault-bridge/pkg/native"
	"github.com/starwell/voidvault-bridge/pkg/policy"
	"github.com/starwell/voidvault-bridge/pkg/shift"
)

// TabID identifies one browser tab or terminal prompt.
type TabID string

// State is a point-in-time view of a session. The zero State (Active false)
// describes an inactive tab.
type State struct {
	Tab               TabID
	Domain            string
	Active            bool
	Ready             bool
	Preview           bool
	SavedCounter      uint16
	ActiveCounter     uint16
	CharacterPosition int
}

// reply settles a pending request.
type reply struct {
	msg native.Message
	err error
}

// pending is an outstanding request. latch is nil for requests nobody waits
// on; the entry still keeps response ordering intact.
type pending struct {
	req   native.Request
	latch *native.Latch[reply]
}

// Session is the per-tab state owned by the controller loop. It is never
// touched from any other goroutine.
type Session struct {
	tab     TabID
	domain  string
	channel native.Channel

	saved    uint16
	active   uint16
	preview  bool
	ready    bool
	shifter  *shift.Shifter
	defaults *policy.Policy

	pending []*pending

	// clearing counts RESET and CANCEL_PREVIEW requests still awaiting
	// their reply. Output received meanwhile belongs to earlier input.
	clearing int
}

func newSession(tab TabID, domain string, ch native.Channel) *Session {
	return &Session{
		tab:     tab,
		domain:  domain,
		channel: ch,
		shifter: shift.NewShifter(domain),
	}
}

func (s *Session) state() State {
	return State{
		Tab:               s.tab,
		Domain:            s.domain,
		Active:            true,
		Ready:             s.ready,
		Preview:           s.preview,
		SavedCounter:      s.saved,
		ActiveCounter:     s.active,
		CharacterPosition: s.shifter.Position(),
	}
}

// send writes req and, when it expects a reply, queues a pending entry. The
// returned latch is nil when wait is false or no reply is expected.
func (s *Session) send(req native.Request, wait bool) (*native.Latch[reply], error) {
	if err := s.channel.Send(req); err != nil {
		return nil, err
	}
	if !req.ExpectsReply() {
		return nil, nil
	}
	p := &pending{req: req}
	if wait {
		p.latch = native.NewLatch[reply]()
	}
	s.pending = append(s.pending, p)
	if clears(req) {
		s.clearing++
	}
	return p.latch, nil
}

// pop removes the oldest pending request.
func (s *Session) pop() *pending {
	if len(s.pending) == 0 {
		return nil
	}
	p := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	if clears(p.req) && s.clearing > 0 {
		s.clearing--
	}
	return p
}

func clears(req native.Request) bool {
	return req.Type == native.TypeReset || req.Type == native.TypeCancelPreview
}

// failAll settles every pending request with err.
func (s *Session) failAll(err error) {
	for _, p := range s.pending {
		if p.latch != nil {
			p.latch.Fire(reply{err: err})
		}
	}
	s.pending = nil
	s.clearing = 0
}

// revert leaves preview mode locally.
func (s *Session) revert() {
	s.active = s.saved
	s.preview = false
}
