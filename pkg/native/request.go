package native

import "encoding/json"

// RequestType is the "type" field of a control request. Keystrokes carry no
// type.
type RequestType string

const (
	TypeHello           RequestType = "INIT"
	TypeActivate        RequestType = "ACTIVATE"
	TypeActivatePreview RequestType = "ACTIVATE_PREVIEW"
	TypeCommitIncrement RequestType = "COMMIT_INCREMENT"
	TypeCancelPreview   RequestType = "CANCEL_PREVIEW"
	TypeReset           RequestType = "RESET"
	TypeFinalize        RequestType = "FINALIZE"
	TypeSetCounter      RequestType = "SET_COUNTER"
	TypeGetCounter      RequestType = "GET_COUNTER"
	TypeSetRules        RequestType = "SET_RULES"
)

// Request is one outbound message to the generator.
type Request struct {
	Type      RequestType `json:"type,omitempty"`
	Domain    string      `json:"domain,omitempty"`
	Counter   *uint16     `json:"counter,omitempty"`
	MaxLength *uint16     `json:"max_length,omitempty"`
	CharTypes *uint8      `json:"char_types,omitempty"`
	CharCode  rune        `json:"charCode,omitempty"`
}

// Init starts a session for domain at its saved counter.
func Init(domain string) Request {
	return Request{Type: TypeActivate, Domain: domain}
}

// Hello asks a freshly started generator whether it is usable. A generator
// without a configured password exits instead of answering.
func Hello() Request {
	return Request{Type: TypeHello}
}

// Char sends one already shifted keystroke.
func Char(r rune) Request {
	return Request{CharCode: r}
}

func Reset() Request {
	return Request{Type: TypeReset}
}

func Finalize() Request {
	return Request{Type: TypeFinalize}
}

func ActivatePreview(domain string) Request {
	return Request{Type: TypeActivatePreview, Domain: domain}
}

func CommitIncrement(domain string) Request {
	return Request{Type: TypeCommitIncrement, Domain: domain}
}

func CancelPreview() Request {
	return Request{Type: TypeCancelPreview}
}

func SetCounterRequest(domain string, counter uint16) Request {
	return Request{Type: TypeSetCounter, Domain: domain, Counter: &counter}
}

func GetCounterRequest(domain string) Request {
	return Request{Type: TypeGetCounter, Domain: domain}
}

// SetRulesRequest stores the generator-side defaults for domain. A maxLength of 0
// means unlimited.
func SetRulesRequest(domain string, maxLength uint16, charTypes uint8) Request {
	return Request{Type: TypeSetRules, Domain: domain, MaxLength: &maxLength, CharTypes: &charTypes}
}

// ExpectsReply reports whether the generator answers r with a response
// message. Keystrokes are answered by Output, which is not a response, and
// FINALIZE ends the stream.
func (r Request) ExpectsReply() bool {
	switch r.Type {
	case "", TypeFinalize:
		return false
	default:
		return true
	}
}

// Encode returns the JSON payload of r without framing.
func Encode(r Request) ([]byte, error) {
	return json.Marshal(r)
}
