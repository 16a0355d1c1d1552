package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starwell/voidvault-bridge/pkg/field"
)

var _ field.Confirmer = (*TerminalConfirmer)(nil)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func press(t *testing.T, m ConfirmModel, msgs ...tea.Msg) (ConfirmModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		var ok bool
		m, ok = next.(ConfirmModel)
		require.True(t, ok)
	}
	return m, cmd
}

func TestConfirmModel_Keys(t *testing.T) {
	tests := []struct {
		name     string
		msgs     []tea.Msg
		accepted bool
	}{
		{name: "y accepts", msgs: []tea.Msg{runeKey('y')}, accepted: true},
		{name: "n rejects", msgs: []tea.Msg{runeKey('n')}},
		{name: "esc rejects", msgs: []tea.Msg{tea.KeyMsg{Type: tea.KeyEsc}}},
		{name: "ctrl+c rejects", msgs: []tea.Msg{tea.KeyMsg{Type: tea.KeyCtrlC}}},
		{name: "enter takes default", msgs: []tea.Msg{tea.KeyMsg{Type: tea.KeyEnter}}, accepted: true},
		{name: "tab then enter rejects", msgs: []tea.Msg{tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyEnter}}},
		{name: "tab twice then enter accepts", msgs: []tea.Msg{tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyEnter}}, accepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(t, NewConfirmModel("example.com", 3, 4), tt.msgs...)
			assert.True(t, m.Answered())
			assert.Equal(t, tt.accepted, m.Accepted())
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
		})
	}
}

func TestConfirmModel_IgnoresOtherKeys(t *testing.T) {
	m, cmd := press(t, NewConfirmModel("example.com", 3, 4), runeKey('x'), tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.False(t, m.Answered())
	assert.False(t, m.Accepted())
	assert.Nil(t, cmd)
	assert.Equal(t, ChoiceAccept, m.Selected())
}

func TestConfirmModel_View(t *testing.T) {
	m := NewConfirmModel("example.com", 3, 4)
	view := m.View()
	assert.Contains(t, view, confirmTitle)
	assert.Contains(t, view, "example.com: v3 → v4")
	assert.Contains(t, view, "Accept")
	assert.Contains(t, view, "Reject")

	m, _ = press(t, m, runeKey('y'))
	assert.Empty(t, m.View())
}

func TestTerminalConfirmer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	c := &TerminalConfirmer{In: strings.NewReader("y"), Out: &out}
	ok, err := c.Confirm(ctx, "example.com", 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	c = &TerminalConfirmer{In: strings.NewReader("n"), Out: &out}
	ok, err = c.Confirm(ctx, "example.com", 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
