package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Choice is the button a ConfirmModel has selected.
type Choice int

const (
	ChoiceAccept Choice = iota
	ChoiceReject
)

const confirmTitle = "Change saved password version?"

type confirmKeyMap struct {
	Accept key.Binding
	Reject key.Binding
	Toggle key.Binding
	Submit key.Binding
}

func (k confirmKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Reject, k.Toggle, k.Submit}
}

func (k confirmKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var confirmKeys = confirmKeyMap{
	Accept: key.NewBinding(
		key.WithKeys("y", "Y", "ctrl+a"),
		key.WithHelp("y", "accept"),
	),
	Reject: key.NewBinding(
		key.WithKeys("n", "N", "esc", "ctrl+c", "ctrl+r"),
		key.WithHelp("n/esc", "reject"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("tab", "left", "right", "h", "l"),
		key.WithHelp("tab", "switch"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "choose"),
	),
}

// ConfirmModel asks whether a domain's saved counter may move from one
// version to another.
type ConfirmModel struct {
	domain   string
	from, to uint16
	selected Choice
	answered bool
	accepted bool
	width    int
	help     help.Model
}

// NewConfirmModel creates a prompt with Accept selected.
func NewConfirmModel(domain string, from, to uint16) ConfirmModel {
	return ConfirmModel{
		domain: domain,
		from:   from,
		to:     to,
		help:   help.New(),
	}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, confirmKeys.Accept):
			return m.answer(true)
		case key.Matches(msg, confirmKeys.Reject):
			return m.answer(false)
		case key.Matches(msg, confirmKeys.Toggle):
			if m.selected == ChoiceAccept {
				m.selected = ChoiceReject
			} else {
				m.selected = ChoiceAccept
			}
		case key.Matches(msg, confirmKeys.Submit):
			return m.answer(m.selected == ChoiceAccept)
		}
	}
	return m, nil
}

func (m ConfirmModel) answer(accepted bool) (tea.Model, tea.Cmd) {
	m.answered = true
	m.accepted = accepted
	return m, tea.Quit
}

// Selected returns the highlighted button.
func (m ConfirmModel) Selected() Choice {
	return m.selected
}

// Answered reports whether the user has made a choice.
func (m ConfirmModel) Answered() bool {
	return m.answered
}

// Accepted reports whether the user approved the change.
func (m ConfirmModel) Accepted() bool {
	return m.answered && m.accepted
}

// Detail is the line describing the change, e.g. "example.com: v3 → v4".
func (m ConfirmModel) Detail() string {
	return fmt.Sprintf("%s: v%d → v%d", m.domain, m.from, m.to)
}

func (m ConfirmModel) View() string {
	if m.answered {
		return ""
	}

	accept, reject := buttonStyle.Render("✓ Accept"), buttonStyle.Render("✗ Reject")
	if m.selected == ChoiceAccept {
		accept = acceptSelectedStyle.Render("✓ Accept")
	} else {
		reject = rejectSelectedStyle.Render("✗ Reject")
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(confirmTitle))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(m.Detail()))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, accept, "  ", reject))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(confirmKeys))

	return boxStyle.Render(b.String()) + "\n"
}

// TerminalConfirmer asks on the terminal. It satisfies field.Confirmer.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminalConfirmer prompts on stdin and stderr.
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{In: os.Stdin, Out: os.Stderr}
}

// Confirm runs the prompt until the user answers or ctx ends. Closing the
// prompt without answering declines.
func (c *TerminalConfirmer) Confirm(ctx context.Context, domain string, from, to uint16) (bool, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if c.In != nil {
		opts = append(opts, tea.WithInput(c.In))
	}
	if c.Out != nil {
		opts = append(opts, tea.WithOutput(c.Out))
	}

	final, err := tea.NewProgram(NewConfirmModel(domain, from, to), opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}

	model, ok := final.(ConfirmModel)
	if !ok {
		return false, nil
	}
	return model.Accepted(), nil
}
