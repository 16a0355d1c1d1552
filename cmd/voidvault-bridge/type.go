package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/starwell/voidvault-bridge/pkg/config"
	"github.com/starwell/voidvault-bridge/pkg/native"
	"github.com/starwell/voidvault-bridge/pkg/session"
)

const terminalTab session.TabID = "terminal"

var errEmptyPhrase = errors.New("phrase is empty")

func typeCmd() *cobra.Command {
	var toClipboard bool

	cmd := &cobra.Command{
		Use:   "type <domain>",
		Short: "Generate the password for a domain from a phrase typed in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase, err := readPhrase(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sessions, _, err := newSessions()
			if err != nil {
				return err
			}
			defer sessions.Close()

			text, meets, err := generate(cmd.Context(), sessions, args[0], phrase, config.GetGenerator().RequestTimeout())
			if err != nil {
				return err
			}
			if !meets {
				pterm.Warning.Printf("Password is shorter than the minimum length for %s\n", args[0])
			}

			if toClipboard {
				if err := clipboard.WriteAll(text); err != nil {
					return fmt.Errorf("failed to copy password: %w", err)
				}
				pterm.Success.Println("Password copied to clipboard")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&toClipboard, "copy", false, "copy the password to the clipboard instead of printing it")
	return cmd
}

// readPhrase reads one line without echo when in is a terminal.
func readPhrase(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Phrase: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read phrase: %w", err)
		}
		return checkPhrase(string(raw))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read phrase: %w", err)
	}
	return checkPhrase(strings.TrimRight(line, "\r\n"))
}

func checkPhrase(s string) (string, error) {
	if s == "" {
		return "", errEmptyPhrase
	}
	return s, nil
}

// generate streams phrase through a terminal session for domain and returns
// the final normalized password. The generator answers every keystroke with
// the whole password so far, so the answer to the last keystroke is the
// result.
func generate(ctx context.Context, sessions *session.Controller, domain, phrase string, timeout time.Duration) (string, bool, error) {
	runes := []rune(phrase)
	if len(runes) == 0 {
		return "", false, errEmptyPhrase
	}

	events := make(chan *session.Event, len(runes)+1)
	done := make(chan struct{})
	defer close(done)
	unsubscribe := sessions.Subscribe(func(e *session.Event) {
		if e.Tab != terminalTab {
			return
		}
		switch e.Type {
		case session.EventTypeOutput, session.EventTypeError, session.EventTypeDeactivated:
			select {
			case events <- e:
			case <-done:
			}
		}
	})
	defer unsubscribe()

	if _, err := sessions.Activate(ctx, terminalTab, domain); err != nil {
		return "", false, err
	}
	defer sessions.Finalize(terminalTab)

	for _, r := range runes {
		if err := sessions.Input(terminalTab, r); err != nil {
			return "", false, err
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		text  string
		meets bool
	)
	for seen := 0; seen < len(runes); {
		select {
		case e := <-events:
			switch e.Type {
			case session.EventTypeOutput:
				text, meets = e.Text, e.MeetsMinimum
				seen++
			case session.EventTypeError:
				return "", false, e.Err
			case session.EventTypeDeactivated:
				if e.Err != nil {
					return "", false, fmt.Errorf("session ended: %w", e.Err)
				}
				return "", false, fmt.Errorf("session ended: %s", e.Reason)
			}
		case <-timer.C:
			return "", false, native.ErrTimeout
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	return text, meets, nil
}
