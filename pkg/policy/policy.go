// Package policy defines the per-domain character and length policy and the
// normalizer that reshapes generator output to satisfy it.
package policy

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/samber/lo"
)

// MaxCounter is the highest counter (version) value a domain can hold.
const MaxCounter = 65535

// AllClassesMask is the generator's default mask: every class enabled.
const AllClassesMask uint8 = 127

// ErrNoClasses is returned by Validate for an enabled policy without classes.
var ErrNoClasses = errors.New("enabled policy must allow at least one character class")

// Policy is the persisted per-domain constraint set.
type Policy struct {
	Enabled        bool    `json:"enabled"`
	MinLength      *int    `json:"minLength,omitempty"`
	MaxLength      *int    `json:"maxLength,omitempty"`
	AllowedClasses []Class `json:"allowedClasses"`
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.Enabled && len(p.AllowedClasses) == 0 {
		return ErrNoClasses
	}
	for _, c := range p.AllowedClasses {
		if !c.Valid() {
			return fmt.Errorf("unknown character class %q", c)
		}
	}
	if p.MinLength != nil && *p.MinLength < 0 {
		return fmt.Errorf("minLength cannot be negative")
	}
	if p.MaxLength != nil && *p.MaxLength < 0 {
		return fmt.Errorf("maxLength cannot be negative")
	}
	return nil
}

// Allows reports whether c is among the allowed classes.
func (p Policy) Allows(c Class) bool {
	return lo.Contains(p.AllowedClasses, c)
}

// Mask encodes the allowed classes as the generator's fixed-order bitset.
func (p Policy) Mask() uint8 {
	var mask uint8
	for _, c := range lo.Uniq(p.AllowedClasses) {
		mask |= c.Bit()
	}
	return mask
}

// Alphabet returns the concatenated canonical sets of the allowed classes in
// canonical class order.
func (p Policy) Alphabet() []rune {
	var alphabet []rune
	for _, c := range AllClasses {
		if p.Allows(c) {
			alphabet = append(alphabet, c.Set()...)
		}
	}
	return alphabet
}

// ClassesFromMask decodes a generator character-type mask.
func ClassesFromMask(mask uint8) []Class {
	return lo.Filter(AllClasses, func(c Class, _ int) bool {
		return mask&c.Bit() != 0
	})
}

// Int returns a pointer to n, for building optional length fields.
func Int(n int) *int {
	return &n
}

// FromGeneratorRules builds the policy implied by the generator's stored
// defaults for a domain. A maxLength of 0 means unlimited and the default
// mask of 127 allows everything; with both at their defaults the policy is
// disabled.
func FromGeneratorRules(maxLength uint16, mask uint8) *Policy {
	p := &Policy{AllowedClasses: ClassesFromMask(mask)}
	if maxLength > 0 {
		p.MaxLength = Int(int(maxLength))
	}
	p.Enabled = mask&AllClassesMask != AllClassesMask || maxLength > 0
	if len(p.AllowedClasses) == 0 {
		p.Enabled = false
	}
	return p
}

// Effective layers the locally stored override on top of the generator
// defaults. A stored policy always wins, enabled or not.
func Effective(local, defaults *Policy) *Policy {
	if local != nil {
		return local
	}
	return defaults
}

// Normalize reshapes raw so that it satisfies p. A nil or disabled policy is
// the identity. Scalars of an allowed class pass through; others are mapped
// to alphabet[codepoint mod len(alphabet)], or dropped when the alphabet is
// empty. The result is then truncated to MaxLength scalars.
func Normalize(raw string, p *Policy) string {
	if p == nil || !p.Enabled {
		return raw
	}

	alphabet := p.Alphabet()
	out := make([]rune, 0, utf8.RuneCountInString(raw))
	for _, r := range raw {
		if c, ok := Classify(r); ok && p.Allows(c) {
			out = append(out, r)
			continue
		}
		if len(alphabet) == 0 {
			continue
		}
		out = append(out, alphabet[int(r)%len(alphabet)])
	}

	if p.MaxLength != nil && *p.MaxLength >= 0 && len(out) > *p.MaxLength {
		out = out[:*p.MaxLength]
	}
	return string(out)
}

// MeetsMinimum reports whether output is long enough for p. It is advisory
// only and never changes the output.
func MeetsMinimum(output string, p *Policy) bool {
	if p == nil || !p.Enabled || p.MinLength == nil {
		return true
	}
	return utf8.RuneCountInString(output) >= *p.MinLength
}
