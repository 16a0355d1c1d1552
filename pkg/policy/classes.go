package policy

import (
	"encoding/json"
	"fmt"
	"unicode"
)

// Class is one of the seven character classes a policy can allow.
type Class string

const (
	ClassLowercase       Class = "lowercase"
	ClassUppercase       Class = "uppercase"
	ClassDigit           Class = "digit"
	ClassBasicSymbol     Class = "basicSymbol"
	ClassExtendedSymbol  Class = "extendedSymbol"
	ClassEmoji           Class = "emoji"
	ClassExtendedUnicode Class = "extendedUnicode"
)

// AllClasses lists every class in canonical order. The order defines both the
// alphabet concatenation used by Normalize and the bit positions of the
// generator's character-type mask.
var AllClasses = []Class{
	ClassLowercase,
	ClassUppercase,
	ClassDigit,
	ClassBasicSymbol,
	ClassExtendedSymbol,
	ClassEmoji,
	ClassExtendedUnicode,
}

// Canonical character sets per class.
const (
	lowercaseSet      = "abcdefghijklmnopqrstuvwxyz"
	uppercaseSet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitSet          = "0123456789"
	basicSymbolSet    = "!@#$%^&*-_+=?"
	extendedSymbolSet = "~`()[]{}<>|\\/:;\"',."
	emojiSet          = "😀😁😂😃😄😅😆😉😊😋😎😍🙂🤗🤔😐😴😜🤓😇🔥🌟🍀🍉🍕🎈🎲🚀🌈⚡🐱🐶"

	extendedUnicodeSet = "àáâãäåæçèéêëìíîïñòóôõöøùúûüýÿßðþ" +
		"ÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏÑÒÓÔÕÖØÙÚÛÜÝÞ" +
		"αβγδεζηθικλμνξοπρστυφχψω"
)

var classSets = map[Class][]rune{
	ClassLowercase:       []rune(lowercaseSet),
	ClassUppercase:       []rune(uppercaseSet),
	ClassDigit:           []rune(digitSet),
	ClassBasicSymbol:     []rune(basicSymbolSet),
	ClassExtendedSymbol:  []rune(extendedSymbolSet),
	ClassEmoji:           []rune(emojiSet),
	ClassExtendedUnicode: []rune(extendedUnicodeSet),
}

// Set returns the canonical characters of c. The result must not be modified.
func (c Class) Set() []rune {
	return classSets[c]
}

// Valid reports whether c names one of the seven known classes.
func (c Class) Valid() bool {
	_, ok := classSets[c]
	return ok
}

// Bit returns c's bit in the generator character-type mask.
func (c Class) Bit() uint8 {
	for i, known := range AllClasses {
		if known == c {
			return 1 << uint(i)
		}
	}
	return 0
}

// UnmarshalJSON rejects unknown class names.
func (c *Class) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Class(s).Valid() {
		return fmt.Errorf("unknown character class %q", s)
	}
	*c = Class(s)
	return nil
}

// emojiTable covers the pictographic blocks the generator can emit.
var emojiTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1},
		{Lo: 0x2B00, Hi: 0x2BFF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F000, Hi: 0x1FAFF, Stride: 1},
	},
}

// Classify returns the class a scalar belongs to. Space, control characters
// and other ASCII outside the canonical sets belong to no class; ok is false
// for them.
func Classify(r rune) (c Class, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return ClassLowercase, true
	case r >= 'A' && r <= 'Z':
		return ClassUppercase, true
	case r >= '0' && r <= '9':
		return ClassDigit, true
	case r < 0x80:
		if containsRune(basicSymbolSet, r) {
			return ClassBasicSymbol, true
		}
		if containsRune(extendedSymbolSet, r) {
			return ClassExtendedSymbol, true
		}
		return "", false
	case unicode.Is(emojiTable, r):
		return ClassEmoji, true
	default:
		return ClassExtendedUnicode, true
	}
}

func containsRune(set string, r rune) bool {
	for _, c := range set {
		if c == r {
			return true
		}
	}
	return false
}
