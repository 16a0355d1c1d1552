package session

// EventType identifies what happened to a tab's session.
type EventType string

const (
	EventTypeActivated    EventType = "activated"     // Session is ready for input.
	EventTypeStateChanged EventType = "state_changed" // Counters or preview flag changed.
	EventTypeOutput       EventType = "output"        // New normalized password for the field.
	EventTypeCleared      EventType = "cleared"       // The field value should be emptied.
	EventTypeError        EventType = "error"         // A generator error nobody was waiting for.
	EventTypeDeactivated  EventType = "deactivated"   // Session is gone; see Reason.
)

// Reason says why a session ended.
type Reason string

const (
	ReasonFinalize   Reason = "finalize"
	ReasonDeactivate Reason = "deactivate"
	ReasonDisconnect Reason = "disconnect"
	ReasonNavigation Reason = "navigation"
	ReasonSuperseded Reason = "superseded"
	ReasonShutdown   Reason = "shutdown"
)

// Event is emitted by the Controller for one tab.
type Event struct {
	// Err is set for error events and for disconnects with a cause.
	Err error

	Type   EventType
	Tab    TabID
	Domain string

	// State is the session snapshot after the change.
	State State

	// Text is the normalized password for output events. Never log it.
	Text string

	// MeetsMinimum is false when Text is shorter than the policy minLength.
	MeetsMinimum bool

	// Reason is set for deactivated events.
	Reason Reason
}

func NewActivatedEvent(st State) *Event {
	return &Event{Type: EventTypeActivated, Tab: st.Tab, Domain: st.Domain, State: st}
}

func NewStateChangedEvent(st State) *Event {
	return &Event{Type: EventTypeStateChanged, Tab: st.Tab, Domain: st.Domain, State: st}
}

func NewOutputEvent(st State, text string, meetsMinimum bool) *Event {
	return &Event{Type: EventTypeOutput, Tab: st.Tab, Domain: st.Domain, State: st, Text: text, MeetsMinimum: meetsMinimum}
}

func NewClearedEvent(st State) *Event {
	return &Event{Type: EventTypeCleared, Tab: st.Tab, Domain: st.Domain, State: st}
}

func NewErrorEvent(st State, err error) *Event {
	return &Event{Type: EventTypeError, Tab: st.Tab, Domain: st.Domain, State: st, Err: err}
}

func NewDeactivatedEvent(tab TabID, domain string, reason Reason, err error) *Event {
	return &Event{Type: EventTypeDeactivated, Tab: tab, Domain: domain, Reason: reason, Err: err}
}
