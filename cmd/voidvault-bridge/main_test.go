package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starwell/voidvault-bridge/pkg/field"
	"github.com/starwell/voidvault-bridge/pkg/native"
	"github.com/starwell/voidvault-bridge/pkg/native/nativetest"
	"github.com/starwell/voidvault-bridge/pkg/policy"
	"github.com/starwell/voidvault-bridge/pkg/session"
	"github.com/starwell/voidvault-bridge/pkg/shift"
)

type staticRules map[string]*policy.Policy

func (r staticRules) Get(domain string) (*policy.Policy, error) {
	return r[domain], nil
}

func newTestSessions(t *testing.T, gen *nativetest.Generator, rules session.RuleSource) *session.Controller {
	t.Helper()
	c := session.NewController(session.Config{
		Dialer:         gen.Dialer(),
		Rules:          rules,
		RequestTimeout: time.Second,
		QueryTimeout:   time.Second,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func shifted(domain, phrase string) []rune {
	s := shift.NewShifter(domain)
	out := make([]rune, 0, len(phrase))
	for _, r := range phrase {
		out = append(out, s.Next(r))
	}
	return out
}

func TestGenerate(t *testing.T) {
	gen := nativetest.NewGenerator()
	gen.SetStoredCounter("example.com", 2)
	sessions := newTestSessions(t, gen, nil)

	text, meets, err := generate(context.Background(), sessions, "example.com", "hunter", time.Second)
	require.NoError(t, err)
	assert.True(t, meets)
	assert.Equal(t, nativetest.Output(shifted("example.com", "hunter"), 2), text)

	_, active := sessions.State(terminalTab)
	assert.False(t, active, "session is finalized afterwards")
}

func TestGenerate_AppliesStoredPolicy(t *testing.T) {
	gen := nativetest.NewGenerator()
	p := &policy.Policy{Enabled: true, MinLength: policy.Int(8), MaxLength: policy.Int(4), AllowedClasses: []policy.Class{policy.ClassDigit}}
	sessions := newTestSessions(t, gen, staticRules{"example.com": p})

	text, meets, err := generate(context.Background(), sessions, "example.com", "abcdef", time.Second)
	require.NoError(t, err)
	assert.False(t, meets)
	assert.Equal(t, policy.Normalize(nativetest.Output(shifted("example.com", "abcdef"), 0), p), text)
	assert.Len(t, []rune(text), 4)
}

func TestGenerate_EmptyPhrase(t *testing.T) {
	sessions := newTestSessions(t, nativetest.NewGenerator(), nil)
	_, _, err := generate(context.Background(), sessions, "example.com", "", time.Second)
	assert.ErrorIs(t, err, errEmptyPhrase)
}

func TestGenerate_ExcludedDomain(t *testing.T) {
	gen := nativetest.NewGenerator()
	sessions := session.NewController(session.Config{
		Dialer:   gen.Dialer(),
		Excluded: func(domain string) bool { return domain == "bank.example" },
	})
	t.Cleanup(func() { sessions.Close() })

	_, _, err := generate(context.Background(), sessions, "bank.example", "secret", time.Second)
	assert.ErrorIs(t, err, session.ErrExcludedDomain)
}

func TestReadPhrase(t *testing.T) {
	phrase, err := readPhrase(strings.NewReader("correct horse\r\nignored\n"), &strings.Builder{})
	require.NoError(t, err)
	assert.Equal(t, "correct horse", phrase)

	phrase, err = readPhrase(strings.NewReader("no newline"), &strings.Builder{})
	require.NoError(t, err)
	assert.Equal(t, "no newline", phrase)

	_, err = readPhrase(strings.NewReader("\n"), &strings.Builder{})
	assert.ErrorIs(t, err, errEmptyPhrase)
}

func TestChangeCounter(t *testing.T) {
	approve := field.ConfirmFunc(func(ctx context.Context, domain string, from, to uint16) (bool, error) {
		return true, nil
	})
	decline := field.ConfirmFunc(func(ctx context.Context, domain string, from, to uint16) (bool, error) {
		return false, nil
	})

	t.Run("bump asks with old and new", func(t *testing.T) {
		gen := nativetest.NewGenerator()
		gen.SetStoredCounter("example.com", 4)
		sessions := newTestSessions(t, gen, nil)

		var asked []uint16
		confirm := field.ConfirmFunc(func(ctx context.Context, domain string, from, to uint16) (bool, error) {
			asked = append(asked, from, to)
			return true, nil
		})
		from, to, err := changeCounter(context.Background(), sessions, confirm, "example.com", bump)
		require.NoError(t, err)
		assert.Equal(t, uint16(4), from)
		assert.Equal(t, uint16(5), to)
		assert.Equal(t, []uint16{4, 5}, asked)

		stored, ok := gen.StoredCounter("example.com")
		require.True(t, ok)
		assert.Equal(t, uint16(5), stored)
	})

	t.Run("unknown domain starts at zero", func(t *testing.T) {
		gen := nativetest.NewGenerator()
		sessions := newTestSessions(t, gen, nil)

		from, to, err := changeCounter(context.Background(), sessions, nil, "new.example", bump)
		require.NoError(t, err)
		assert.Equal(t, uint16(0), from)
		assert.Equal(t, uint16(1), to)
	})

	t.Run("declined leaves the counter", func(t *testing.T) {
		gen := nativetest.NewGenerator()
		gen.SetStoredCounter("example.com", 4)
		sessions := newTestSessions(t, gen, nil)

		_, _, err := changeCounter(context.Background(), sessions, decline, "example.com", bump)
		assert.ErrorIs(t, err, errDeclined)
		stored, _ := gen.StoredCounter("example.com")
		assert.Equal(t, uint16(4), stored)
	})

	t.Run("unchanged value skips the prompt", func(t *testing.T) {
		gen := nativetest.NewGenerator()
		gen.SetStoredCounter("example.com", 7)
		sessions := newTestSessions(t, gen, nil)

		failing := field.ConfirmFunc(func(ctx context.Context, domain string, from, to uint16) (bool, error) {
			return false, errors.New("should not be asked")
		})
		from, to, err := changeCounter(context.Background(), sessions, failing, "example.com", func(uint16) (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, from, to)
	})

	t.Run("out of range", func(t *testing.T) {
		gen := nativetest.NewGenerator()
		sessions := newTestSessions(t, gen, nil)

		_, _, err := changeCounter(context.Background(), sessions, approve, "example.com", func(uint16) (int, error) { return policy.MaxCounter + 1, nil })
		assert.ErrorIs(t, err, session.ErrInvalidVersion)
		_, _, err = changeCounter(context.Background(), sessions, approve, "example.com", func(uint16) (int, error) { return -1, nil })
		assert.ErrorIs(t, err, session.ErrInvalidVersion)
	})

	t.Run("bump saturates", func(t *testing.T) {
		gen := nativetest.NewGenerator()
		gen.SetStoredCounter("example.com", policy.MaxCounter)
		sessions := newTestSessions(t, gen, nil)

		_, _, err := changeCounter(context.Background(), sessions, approve, "example.com", bump)
		assert.ErrorIs(t, err, session.ErrInvalidVersion)
	})
}

func TestParseVersion(t *testing.T) {
	n, err := parseVersion("65535")
	require.NoError(t, err)
	assert.Equal(t, policy.MaxCounter, n)

	_, err = parseVersion("70000")
	assert.ErrorIs(t, err, session.ErrInvalidVersion)
	_, err = parseVersion("-1")
	assert.ErrorIs(t, err, session.ErrInvalidVersion)
	_, err = parseVersion("seven")
	assert.ErrorContains(t, err, "invalid version")
}

func TestCounterSet_RejectsVersionWithoutContactingGenerator(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	root := newRootCmd()
	root.SetArgs([]string{"--host", filepath.Join(t.TempDir(), "no-such-host"), "counter", "set", "example.com", "70000", "--yes"})
	root.SetOut(io.Discard)
	err = root.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, session.ErrInvalidVersion)
}

func TestBuildPolicy(t *testing.T) {
	p, err := buildPolicy(true, 6, 12, []string{"digit", "lowercase", "digit"})
	require.NoError(t, err)
	assert.Equal(t, policy.Policy{
		Enabled:        true,
		MinLength:      policy.Int(6),
		MaxLength:      policy.Int(12),
		AllowedClasses: []policy.Class{policy.ClassDigit, policy.ClassLowercase},
	}, p)

	p, err = buildPolicy(true, -1, -1, []string{"emoji"})
	require.NoError(t, err)
	assert.Nil(t, p.MinLength)
	assert.Nil(t, p.MaxLength)

	_, err = buildPolicy(true, 10, 4, []string{"digit"})
	assert.ErrorContains(t, err, "larger than")

	_, err = buildPolicy(true, -1, -1, []string{"klingon"})
	assert.ErrorContains(t, err, "unknown character class")

	_, err = buildPolicy(true, -1, -1, nil)
	assert.ErrorIs(t, err, policy.ErrNoClasses)

	p, err = buildPolicy(false, -1, -1, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled)
}

func TestGeneratorRules(t *testing.T) {
	maxLen, mask := generatorRules(policy.Policy{Enabled: true, MaxLength: policy.Int(16), AllowedClasses: []policy.Class{policy.ClassLowercase, policy.ClassDigit}})
	assert.Equal(t, uint16(16), maxLen)
	assert.Equal(t, policy.ClassLowercase.Bit()|policy.ClassDigit.Bit(), mask)

	maxLen, mask = generatorRules(policy.Policy{Enabled: true, MaxLength: policy.Int(1 << 20), AllowedClasses: []policy.Class{policy.ClassDigit}})
	assert.Equal(t, uint16(65535), maxLen)
	assert.Equal(t, policy.ClassDigit.Bit(), mask)

	maxLen, mask = generatorRules(policy.Policy{Enabled: false, MaxLength: policy.Int(8)})
	assert.Zero(t, maxLen)
	assert.Equal(t, policy.AllClassesMask, mask)
}

func TestGeneratorDefaultsReadFromActivation(t *testing.T) {
	gen := nativetest.NewGenerator()
	dialer := gen.Dialer()
	ctx := context.Background()

	maxLen, mask := generatorRules(policy.Policy{Enabled: true, MaxLength: policy.Int(12), AllowedClasses: []policy.Class{policy.ClassDigit}})
	require.NoError(t, native.SetRules(ctx, dialer, "example.com", maxLen, mask, time.Second))

	gotLen, gotMask, err := native.GetRules(ctx, dialer, "example.com", time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint16(12), gotLen)
	assert.Equal(t, policy.ClassDigit.Bit(), gotMask)
	assert.Equal(t, []native.RequestType{native.TypeActivate}, dialer.Last().SentTypes())
}

func TestPolicyRow(t *testing.T) {
	row := policyRow("example.com", policy.Policy{Enabled: true, MaxLength: policy.Int(5), AllowedClasses: []policy.Class{policy.ClassLowercase}})
	assert.Equal(t, []string{"example.com", "true", "-", "5", "lowercase"}, row)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"browse"}, {"type"}, {"check"}, {"version"},
		{"rules", "list"}, {"rules", "get"}, {"rules", "set"}, {"rules", "delete"},
		{"counter", "get"}, {"counter", "set"}, {"counter", "bump"},
		{"settings", "show"}, {"settings", "set"}, {"settings", "exclude", "add"}, {"settings", "reset"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
