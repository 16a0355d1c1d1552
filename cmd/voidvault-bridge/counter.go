package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/starwell/voidvault-bridge/pkg/field"
	"github.com/starwell/voidvault-bridge/pkg/policy"
	"github.com/starwell/voidvault-bridge/pkg/rules"
	"github.com/starwell/voidvault-bridge/pkg/session"
	"github.com/starwell/voidvault-bridge/pkg/ui"
)

var errDeclined = errors.New("change declined")

func counterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Read or change a domain's saved password version",
	}
	cmd.AddCommand(counterGetCmd(), counterSetCmd(), counterBumpCmd())
	return cmd
}

func counterGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <domain>",
		Short: "Show the saved version for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, _, err := newSessions()
			if err != nil {
				return err
			}
			defer sessions.Close()

			domain := rules.NormalizeDomain(args[0])
			counter, ok, err := sessions.GetCounter(cmd.Context(), domain)
			if err != nil {
				return err
			}
			if !ok {
				pterm.Info.Printf("%s has no saved version; v0 is used\n", domain)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%d\n", domain, counter)
			return nil
		},
	}
}

func counterSetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "set <domain> <version>",
		Short: "Store a version for a domain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			return runCounterChange(cmd, args[0], yes, func(uint16) (int, error) { return n, nil })
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func counterBumpCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "bump <domain>",
		Short: "Move a domain to its next version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCounterChange(cmd, args[0], yes, bump)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// parseVersion rejects anything outside [0, 65535] before the generator is
// contacted.
func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", s, err)
	}
	if n < 0 || n > policy.MaxCounter {
		return 0, fmt.Errorf("%w: %d", session.ErrInvalidVersion, n)
	}
	return n, nil
}

func bump(current uint16) (int, error) {
	if current >= policy.MaxCounter {
		return 0, session.ErrInvalidVersion
	}
	return int(current) + 1, nil
}

func runCounterChange(cmd *cobra.Command, domain string, yes bool, next func(uint16) (int, error)) error {
	sessions, _, err := newSessions()
	if err != nil {
		return err
	}
	defer sessions.Close()

	var confirm field.Confirmer = ui.NewTerminalConfirmer()
	if yes {
		confirm = nil
	}

	domain = rules.NormalizeDomain(domain)
	from, to, err := changeCounter(cmd.Context(), sessions, confirm, domain, next)
	switch {
	case errors.Is(err, errDeclined):
		pterm.Info.Println("Version left unchanged")
		return nil
	case err != nil:
		return err
	case from == to:
		pterm.Info.Printf("%s is already at v%d\n", domain, to)
	default:
		pterm.Success.Printf("%s: v%d → v%d\n", domain, from, to)
	}
	return nil
}

// changeCounter reads domain's counter, computes the new one with next and
// stores it once confirm approves. A nil confirm approves without asking.
func changeCounter(ctx context.Context, sessions *session.Controller, confirm field.Confirmer, domain string, next func(uint16) (int, error)) (from, to uint16, err error) {
	from, _, err = sessions.GetCounter(ctx, domain)
	if err != nil {
		return 0, 0, err
	}

	n, err := next(from)
	if err != nil {
		return from, from, err
	}
	if n < 0 || n > policy.MaxCounter {
		return from, from, session.ErrInvalidVersion
	}
	to = uint16(n)
	if to == from {
		return from, to, nil
	}

	if confirm != nil {
		ok, err := confirm.Confirm(ctx, domain, from, to)
		if err != nil {
			return from, from, err
		}
		if !ok {
			return from, from, errDeclined
		}
	}

	if err := sessions.SetCounter(ctx, terminalTab, domain, n); err != nil {
		return from, from, err
	}
	return from, to, nil
}
