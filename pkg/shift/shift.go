// Package shift implements the domain-dependent keystroke substitution that
// is applied to every typed character before it reaches the generator.
//
// The transform is a pure function of (character, domain, position). The
// domain is reduced to its letters and the letter at position mod length
// picks both the magnitude (code mod 26) and the direction (up for an even
// code, down for an odd one) of the code point adjustment.
package shift

import (
	"unicode"
	"unicode/utf8"
)

// Letters reduces a domain to the letters it contains, dropping dots,
// hyphens, digits and any other separators.
func Letters(domain string) []rune {
	letters := make([]rune, 0, len(domain))
	for _, r := range domain {
		if unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	return letters
}

// Shift adjusts r using the domain letter selected by position.
// An empty (letterless) domain leaves r unchanged, as does any adjustment
// that would leave the valid Unicode scalar range.
func Shift(r rune, domain string, position int) rune {
	letters := Letters(domain)
	if len(letters) == 0 {
		return r
	}
	return shiftWith(r, letters, position)
}

func shiftWith(r rune, letters []rune, position int) rune {
	if position < 0 {
		position = -position
	}
	code := letters[position%len(letters)]
	magnitude := code % 26

	shifted := r - magnitude
	if code%2 == 0 {
		shifted = r + magnitude
	}

	if shifted < 0 || !utf8.ValidRune(shifted) {
		return r
	}
	return shifted
}

// Shifter carries a domain and a strictly increasing position counter for
// one session. It is not safe for concurrent use.
type Shifter struct {
	letters  []rune
	position int
}

// NewShifter creates a Shifter for domain starting at position 0.
func NewShifter(domain string) *Shifter {
	return &Shifter{letters: Letters(domain)}
}

// Next shifts r at the current position and advances the position.
func (s *Shifter) Next(r rune) rune {
	out := r
	if len(s.letters) > 0 {
		out = shiftWith(r, s.letters, s.position)
	}
	s.position++
	return out
}

// Position returns the position the next character will be shifted at.
func (s *Shifter) Position() int {
	return s.position
}

// Reset rewinds the position counter to 0.
func (s *Shifter) Reset() {
	s.position = 0
}
