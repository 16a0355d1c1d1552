package field

import (
	"fmt"
	"strings"
	"unicode"
)

// Named keys, using DOM KeyboardEvent.key values.
const (
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
	KeyBackspace = "Backspace"
	KeyDelete    = "Delete"
	KeyTab       = "Tab"
)

// Key is one keydown event. Printable keys carry their rune in Rune and the
// same text in Name.
type Key struct {
	Name  string `json:"key"`
	Rune  rune   `json:"-"`
	Ctrl  bool   `json:"ctrlKey"`
	Alt   bool   `json:"altKey"`
	Meta  bool   `json:"metaKey"`
	Shift bool   `json:"shiftKey"`
}

// KeyFromName builds a Key from a DOM key value, filling Rune when the
// value is a single printable character.
func KeyFromName(name string) Key {
	k := Key{Name: name}
	runes := []rune(name)
	if len(runes) == 1 && unicode.IsPrint(runes[0]) {
		k.Rune = runes[0]
	}
	return k
}

// Printable reports whether k types a character into the field. Chords
// with Ctrl or Meta are shortcuts, not input.
func (k Key) Printable() bool {
	return k.Rune != 0 && !k.Ctrl && !k.Meta
}

// action is what a key does to the session.
type action int

const (
	actionNone action = iota
	actionInput
	actionReset
	actionSubmit
	actionEscape
	actionFinalize
)

func route(k Key) action {
	if k.Printable() {
		return actionInput
	}
	switch k.Name {
	case KeyBackspace, KeyDelete:
		return actionReset
	case KeyEnter:
		return actionSubmit
	case KeyEscape:
		return actionEscape
	case KeyTab:
		return actionFinalize
	}
	return actionNone
}

// Hotkey is a key chord such as "Alt+Shift+P".
type Hotkey struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
	Meta  bool   `json:"meta"`
}

// ParseHotkey parses modifiers and a final key joined by "+".
func ParseHotkey(s string) (Hotkey, error) {
	parts := strings.Split(s, "+")
	var hk Hotkey
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Hotkey{}, fmt.Errorf("invalid hotkey %q", s)
		}
		if i == len(parts)-1 {
			hk.Key = p
			break
		}
		switch strings.ToLower(p) {
		case "ctrl", "control":
			hk.Ctrl = true
		case "alt", "option":
			hk.Alt = true
		case "shift":
			hk.Shift = true
		case "meta", "cmd", "command", "super":
			hk.Meta = true
		default:
			return Hotkey{}, fmt.Errorf("unknown modifier %q in hotkey %q", p, s)
		}
	}
	if !hk.Ctrl && !hk.Alt && !hk.Meta && len([]rune(hk.Key)) == 1 {
		return Hotkey{}, fmt.Errorf("hotkey %q would swallow typing", s)
	}
	return hk, nil
}

// Matches reports whether k is this chord. Key names compare case-insensitively.
func (h Hotkey) Matches(k Key) bool {
	return strings.EqualFold(h.Key, k.Name) &&
		h.Ctrl == k.Ctrl && h.Alt == k.Alt && h.Shift == k.Shift && h.Meta == k.Meta
}

func (h Hotkey) String() string {
	var parts []string
	if h.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if h.Alt {
		parts = append(parts, "Alt")
	}
	if h.Shift {
		parts = append(parts, "Shift")
	}
	if h.Meta {
		parts = append(parts, "Meta")
	}
	return strings.Join(append(parts, h.Key), "+")
}
