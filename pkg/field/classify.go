package field

import "strings"

// Kind is the best-effort purpose of a password field.
type Kind int

const (
	KindLogin       Kind = iota // existing password
	KindNewPassword             // registration or new password
	KindReset                   // password change or reset
)

func (k Kind) String() string {
	switch k {
	case KindNewPassword:
		return "new-password"
	case KindReset:
		return "reset"
	default:
		return "login"
	}
}

var (
	resetHints = []string{"reset", "change", "update", "forgot", "recover"}
	newHints   = []string{"new", "confirm", "repeat", "retype", "register", "signup", "sign-up", "sign_up", "create"}
)

// Classify guesses what c is for from its type, autocomplete token, name and
// id. Pages are free to lie, so callers must not treat the answer as
// authoritative. Only password inputs (or ones of unknown type) get a guess
// beyond KindLogin.
func Classify(c Candidate) Kind {
	if typ := strings.ToLower(strings.TrimSpace(c.Type)); typ != "" && typ != "password" {
		return KindLogin
	}

	autocomplete := strings.ToLower(strings.TrimSpace(c.Autocomplete))
	hints := strings.ToLower(c.Name + " " + c.ID)

	switch {
	case strings.Contains(autocomplete, "current-password"):
		return KindLogin
	case strings.Contains(autocomplete, "new-password"):
		if containsAny(hints, resetHints) {
			return KindReset
		}
		return KindNewPassword
	case containsAny(hints, resetHints):
		return KindReset
	case containsAny(hints, newHints):
		return KindNewPassword
	default:
		return KindLogin
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
