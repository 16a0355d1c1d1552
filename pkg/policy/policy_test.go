package policy

import (
	"encoding/json"
	"math/rand"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInputs() []string {
	inputs := []string{
		"",
		"a1B2c3",
		"correct horse battery staple",
		"ÀÉÎõü ßþ αβγ",
		"😀🚀 mixed 😎 TEXT 123 !@# {}[]",
		"\x00\x01\t\n",
		string([]byte{0xff, 0xfe, 'a'}),
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := rng.Intn(40)
		rs := make([]rune, n)
		for j := range rs {
			switch rng.Intn(4) {
			case 0:
				rs[j] = rune(rng.Intn(0x80))
			case 1:
				rs[j] = rune(0x80 + rng.Intn(0x700))
			case 2:
				rs[j] = rune(0x1F300 + rng.Intn(0x300))
			default:
				rs[j] = rune(0x4E00 + rng.Intn(0x100))
			}
		}
		inputs = append(inputs, string(rs))
	}
	return inputs
}

func TestNormalize_NilPolicyIsIdentity(t *testing.T) {
	for _, s := range sampleInputs() {
		assert.Equal(t, s, Normalize(s, nil))
	}
}

func TestNormalize_DisabledPolicyIsIdentity(t *testing.T) {
	p := &Policy{Enabled: false, MaxLength: Int(2), AllowedClasses: []Class{ClassDigit}}
	for _, s := range sampleInputs() {
		assert.Equal(t, s, Normalize(s, p))
	}
}

func TestNormalize_LowercaseMaxFive(t *testing.T) {
	p := &Policy{Enabled: true, MaxLength: Int(5), AllowedClasses: []Class{ClassLowercase}}
	for _, s := range sampleInputs() {
		out := Normalize(s, p)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), 5, "input %q", s)
		for _, r := range out {
			assert.True(t, r >= 'a' && r <= 'z', "unexpected %q in output for %q", r, s)
		}
	}
}

func TestNormalize_DigitScenario(t *testing.T) {
	p := &Policy{Enabled: true, MaxLength: Int(4), AllowedClasses: []Class{ClassDigit}}
	out := Normalize("a1B2c3", p)

	require.Equal(t, 4, utf8.RuneCountInString(out))
	for _, r := range out {
		assert.True(t, r >= '0' && r <= '9')
	}
	// 'a' = 97 -> 7, 'B' = 66 -> 6.
	assert.Equal(t, "7162", out)
}

func TestNormalize_IsDeterministic(t *testing.T) {
	p := &Policy{Enabled: true, AllowedClasses: []Class{ClassUppercase, ClassEmoji}}
	for _, s := range sampleInputs() {
		assert.Equal(t, Normalize(s, p), Normalize(s, p))
	}
}

func TestNormalize_AllowedScalarsPassThrough(t *testing.T) {
	p := &Policy{Enabled: true, AllowedClasses: []Class{ClassEmoji, ClassExtendedUnicode}}
	assert.Equal(t, "😀é", Normalize("😀é", p))
}

func TestNormalize_EmptyAlphabetDrops(t *testing.T) {
	// Violates the enabled invariant, but Normalize must still not fail.
	p := &Policy{Enabled: true}
	assert.Equal(t, "", Normalize("abc😀", p))
}

func TestNormalize_SpaceIsRemapped(t *testing.T) {
	p := &Policy{Enabled: true, AllowedClasses: AllClasses}
	out := Normalize("a b", p)
	assert.Equal(t, 3, utf8.RuneCountInString(out))
	assert.NotContains(t, out, " ")
}

func TestNormalize_MinLengthNeverMutates(t *testing.T) {
	p := &Policy{Enabled: true, MinLength: Int(20), AllowedClasses: []Class{ClassLowercase}}
	assert.Equal(t, "abc", Normalize("abc", p))
	assert.False(t, MeetsMinimum("abc", p))
	assert.True(t, MeetsMinimum("abcdefghijklmnopqrstuvwxyz", p))
	assert.True(t, MeetsMinimum("", nil))
}

func TestClassify(t *testing.T) {
	cases := map[rune]Class{
		'q':  ClassLowercase,
		'Q':  ClassUppercase,
		'7':  ClassDigit,
		'#':  ClassBasicSymbol,
		'{':  ClassExtendedSymbol,
		'"':  ClassExtendedSymbol,
		'🚀':  ClassEmoji,
		'⚡':  ClassEmoji,
		'ß':  ClassExtendedUnicode,
		'中':  ClassExtendedUnicode,
	}
	for r, want := range cases {
		got, ok := Classify(r)
		assert.True(t, ok, "%q", r)
		assert.Equal(t, want, got, "%q", r)
	}

	_, ok := Classify(' ')
	assert.False(t, ok)
	_, ok = Classify('\n')
	assert.False(t, ok)
}

func TestCanonicalSetsMatchTheirClass(t *testing.T) {
	for _, c := range AllClasses {
		for _, r := range c.Set() {
			got, ok := Classify(r)
			require.True(t, ok)
			assert.Equal(t, c, got, "%q", r)
		}
	}
}

func TestMaskRoundTrip(t *testing.T) {
	p := Policy{AllowedClasses: []Class{ClassLowercase, ClassDigit, ClassEmoji, ClassDigit}}
	assert.Equal(t, uint8(1|4|32), p.Mask())

	if diff := cmp.Diff([]Class{ClassLowercase, ClassDigit, ClassEmoji}, ClassesFromMask(p.Mask())); diff != "" {
		t.Errorf("ClassesFromMask mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, AllClasses, ClassesFromMask(AllClassesMask))
	assert.Equal(t, AllClassesMask, Policy{AllowedClasses: AllClasses}.Mask())
}

func TestFromGeneratorRules(t *testing.T) {
	defaults := FromGeneratorRules(0, AllClassesMask)
	assert.False(t, defaults.Enabled)
	assert.Nil(t, defaults.MaxLength)

	limited := FromGeneratorRules(12, AllClassesMask)
	assert.True(t, limited.Enabled)
	require.NotNil(t, limited.MaxLength)
	assert.Equal(t, 12, *limited.MaxLength)

	digitsOnly := FromGeneratorRules(0, ClassDigit.Bit())
	assert.True(t, digitsOnly.Enabled)
	assert.Equal(t, []Class{ClassDigit}, digitsOnly.AllowedClasses)

	none := FromGeneratorRules(8, 0)
	assert.False(t, none.Enabled)
}

func TestEffective(t *testing.T) {
	local := &Policy{Enabled: false}
	defaults := &Policy{Enabled: true, AllowedClasses: []Class{ClassDigit}}

	assert.Same(t, local, Effective(local, defaults))
	assert.Same(t, defaults, Effective(nil, defaults))
	assert.Nil(t, Effective(nil, nil))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Policy{}.Validate())
	assert.ErrorIs(t, Policy{Enabled: true}.Validate(), ErrNoClasses)
	assert.Error(t, Policy{Enabled: true, AllowedClasses: []Class{"glyphs"}}.Validate())
	assert.Error(t, Policy{MaxLength: Int(-1)}.Validate())
	assert.NoError(t, Policy{Enabled: true, AllowedClasses: []Class{ClassDigit}, MinLength: Int(8)}.Validate())
}

func TestPolicyJSON(t *testing.T) {
	var p Policy
	require.NoError(t, json.Unmarshal([]byte(`{"enabled":true,"maxLength":16,"allowedClasses":["lowercase","digit"]}`), &p))
	assert.True(t, p.Enabled)
	require.NotNil(t, p.MaxLength)
	assert.Equal(t, 16, *p.MaxLength)
	assert.Nil(t, p.MinLength)
	assert.Equal(t, []Class{ClassLowercase, ClassDigit}, p.AllowedClasses)

	err := json.Unmarshal([]byte(`{"enabled":true,"allowedClasses":["runes"]}`), &p)
	assert.Error(t, err)
}
