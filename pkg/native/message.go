package native

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starwell/voidvault-bridge/pkg/policy"
)

// Message is a decoded generator reply. The set of implementations is closed.
type Message interface {
	isMessage()
}

// Ready answers ACTIVATE (and INIT, which carries no counters).
type Ready struct {
	SavedCounter  uint16
	ActiveCounter uint16
	MaxLength     uint16
	CharTypes     uint8
}

// Preview answers ACTIVATE_PREVIEW.
type Preview struct {
	SavedCounter  uint16
	ActiveCounter uint16
	MaxLength     uint16
	CharTypes     uint8
}

// Committed answers COMMIT_INCREMENT with the new saved counter.
type Committed struct {
	Counter uint16
}

// Cancelled answers CANCEL_PREVIEW with the restored saved counter.
type Cancelled struct {
	Counter uint16
}

// Success answers SET_COUNTER and SET_RULES.
type Success struct{}

// ResetAck answers RESET.
type ResetAck struct{}

// CounterValue answers GET_COUNTER. Counter is nil when the domain has never
// been stored.
type CounterValue struct {
	Counter *uint16
}

// Output is the full regenerated password after a keystroke.
type Output struct {
	Text string
}

// Error is a generator-side failure for the oldest outstanding request.
type Error struct {
	Message string
}

func (Ready) isMessage()        {}
func (Preview) isMessage()      {}
func (Committed) isMessage()    {}
func (Cancelled) isMessage()    {}
func (Success) isMessage()      {}
func (ResetAck) isMessage()     {}
func (CounterValue) isMessage() {}
func (Output) isMessage()       {}
func (Error) isMessage()        {}

// Policy returns the policy implied by the generator defaults in r.
func (r Ready) Policy() *policy.Policy {
	return policy.FromGeneratorRules(r.MaxLength, r.CharTypes)
}

// Policy returns the policy implied by the generator defaults in p.
func (p Preview) Policy() *policy.Policy {
	return policy.FromGeneratorRules(p.MaxLength, p.CharTypes)
}

// IsResponse reports whether m settles an outstanding request. Output is
// pushed after keystrokes and never does.
func IsResponse(m Message) bool {
	_, ok := m.(Output)
	return !ok
}

// Kind names a message for logs without exposing its payload.
func Kind(m Message) string {
	switch m.(type) {
	case Ready:
		return "ready"
	case Preview:
		return "preview"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	case Success:
		return "success"
	case ResetAck:
		return "reset"
	case CounterValue:
		return "counter"
	case Output:
		return "output"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("%T", m)
	}
}

type wireMessage struct {
	Status        *string         `json:"status"`
	SavedCounter  *uint16         `json:"saved_counter"`
	ActiveCounter *uint16         `json:"active_counter"`
	MaxLength     *uint16         `json:"max_length"`
	CharTypes     *uint8          `json:"char_types"`
	Counter       json.RawMessage `json:"counter"`
	Output        *string         `json:"output"`
	Error         *string         `json:"error"`
}

func (w wireMessage) defaults() (uint16, uint8) {
	maxLength, charTypes := uint16(0), policy.AllClassesMask
	if w.MaxLength != nil {
		maxLength = *w.MaxLength
	}
	if w.CharTypes != nil {
		charTypes = *w.CharTypes
	}
	return maxLength, charTypes
}

func (w wireMessage) counters() (uint16, uint16) {
	var saved, active uint16
	if w.SavedCounter != nil {
		saved = *w.SavedCounter
	}
	active = saved
	if w.ActiveCounter != nil {
		active = *w.ActiveCounter
	}
	return saved, active
}

func (w wireMessage) counter() (*uint16, error) {
	if len(w.Counter) == 0 || bytes.Equal(w.Counter, []byte("null")) {
		return nil, nil
	}
	var n uint16
	if err := json.Unmarshal(w.Counter, &n); err != nil {
		return nil, fmt.Errorf("invalid counter: %w", err)
	}
	return &n, nil
}

// Decode classifies one JSON payload from the generator.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}

	switch {
	case w.Error != nil:
		return Error{Message: *w.Error}, nil
	case w.Output != nil:
		return Output{Text: *w.Output}, nil
	}

	if w.Status != nil {
		switch *w.Status {
		case "ready":
			saved, active := w.counters()
			maxLength, charTypes := w.defaults()
			return Ready{SavedCounter: saved, ActiveCounter: active, MaxLength: maxLength, CharTypes: charTypes}, nil
		case "preview":
			saved, active := w.counters()
			maxLength, charTypes := w.defaults()
			return Preview{SavedCounter: saved, ActiveCounter: active, MaxLength: maxLength, CharTypes: charTypes}, nil
		case "committed", "cancelled":
			c, err := w.counter()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
			}
			if c == nil {
				return nil, fmt.Errorf("%w: %s without counter", ErrUnknownMessage, *w.Status)
			}
			if *w.Status == "committed" {
				return Committed{Counter: *c}, nil
			}
			return Cancelled{Counter: *c}, nil
		case "success":
			return Success{}, nil
		case "reset":
			return ResetAck{}, nil
		default:
			return nil, fmt.Errorf("%w: status %q", ErrUnknownMessage, *w.Status)
		}
	}

	if len(w.Counter) > 0 {
		c, err := w.counter()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
		}
		return CounterValue{Counter: c}, nil
	}
	return nil, ErrUnknownMessage
}
