package field

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		cand Candidate
		want Kind
	}{
		{"plain login", Candidate{Name: "password"}, KindLogin},
		{"current-password wins over hints", Candidate{Name: "new_password", Autocomplete: "current-password"}, KindLogin},
		{"new-password autocomplete", Candidate{Autocomplete: "new-password"}, KindNewPassword},
		{"new-password on a change form", Candidate{ID: "change-pw", Autocomplete: "new-password"}, KindReset},
		{"reset by name", Candidate{Name: "reset_password"}, KindReset},
		{"forgot by id", Candidate{ID: "forgotPassword"}, KindReset},
		{"signup by id", Candidate{ID: "signup-password"}, KindNewPassword},
		{"confirm field", Candidate{Name: "password_confirm"}, KindNewPassword},
		{"case insensitive", Candidate{Name: "Register_PW", Autocomplete: " NEW-PASSWORD "}, KindNewPassword},
		{"password type keeps hints", Candidate{Type: "Password", Name: "new_password"}, KindNewPassword},
		{"text input is never new", Candidate{Type: "text", Name: "new_password", Autocomplete: "new-password"}, KindLogin},
		{"email input is never reset", Candidate{Type: "email", ID: "forgot-email"}, KindLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.cand))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "login", KindLogin.String())
	assert.Equal(t, "new-password", KindNewPassword.String())
	assert.Equal(t, "reset", KindReset.String())
}

func TestParseCandidates(t *testing.T) {
	doc := `<!doctype html>
<html><body>
  <form>
    <input type="text" name="user">
    <input type="password" id="pw" autocomplete="current-password">
  </form>
  <form id="signup">
    <input TYPE="Password" name="new_password">
    <input type="password" disabled name="ghost">
    <input type="password">
    <input type="password" id="2fa">
  </form>
</body></html>`

	got, err := ParseCandidates(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, Candidate{
		Selector:     "#pw",
		Type:         "password",
		ID:           "pw",
		Autocomplete: "current-password",
	}, got[0])
	assert.Equal(t, `input[type="password"][name="new_password"]`, got[1].Selector)
	assert.Equal(t, `input[type="password"] >> nth=3`, got[2].Selector)
	assert.Equal(t, `input[type="password"] >> nth=4`, got[3].Selector, "ids starting with a digit need escaping")

	assert.Equal(t, KindLogin, Classify(got[0]))
	assert.Equal(t, KindNewPassword, Classify(got[1]))
}

func TestParseCandidates_NoFields(t *testing.T) {
	got, err := ParseCandidates(strings.NewReader(`<p>nothing here</p>`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRoute(t *testing.T) {
	tests := []struct {
		key  Key
		want action
	}{
		{KeyFromName("a"), actionInput},
		{KeyFromName("é"), actionInput},
		{KeyFromName(" "), actionInput},
		{Key{Name: "c", Rune: 'c', Ctrl: true}, actionNone},
		{Key{Name: "v", Rune: 'v', Meta: true}, actionNone},
		{Key{Name: "A", Rune: 'A', Shift: true}, actionInput},
		{KeyFromName(KeyBackspace), actionReset},
		{KeyFromName(KeyDelete), actionReset},
		{KeyFromName(KeyEnter), actionSubmit},
		{KeyFromName(KeyEscape), actionEscape},
		{KeyFromName(KeyTab), actionFinalize},
		{KeyFromName("ArrowLeft"), actionNone},
		{KeyFromName("Shift"), actionNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, route(tt.key), "key %+v", tt.key)
	}
}

func TestParseHotkey(t *testing.T) {
	hk, err := ParseHotkey("Alt+Shift+P")
	require.NoError(t, err)
	assert.Equal(t, Hotkey{Key: "P", Alt: true, Shift: true}, hk)
	assert.Equal(t, "Alt+Shift+P", hk.String())

	assert.True(t, hk.Matches(Key{Name: "p", Alt: true, Shift: true}))
	assert.False(t, hk.Matches(Key{Name: "p", Alt: true}))
	assert.False(t, hk.Matches(Key{Name: "p", Alt: true, Shift: true, Ctrl: true}))

	hk, err = ParseHotkey("ctrl + ArrowUp")
	require.NoError(t, err)
	assert.Equal(t, Hotkey{Key: "ArrowUp", Ctrl: true}, hk)

	for _, bad := range []string{"", "Alt+", "Hyper+P", "Shift+P", "p"} {
		_, err := ParseHotkey(bad)
		assert.Error(t, err, bad)
	}
}
