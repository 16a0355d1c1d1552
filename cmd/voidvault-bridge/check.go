package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/starwell/voidvault-bridge/pkg/config"
	"github.com/starwell/voidvault-bridge/pkg/native"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the generator has a password configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dialer, err := newDialer()
			if err != nil {
				return err
			}

			spinner, _ := pterm.DefaultSpinner.Start("Asking the generator...")
			ok, err := native.CheckConfigured(cmd.Context(), dialer, config.GetGenerator().QueryTimeout())
			if err != nil {
				spinner.Fail("Generator did not answer")
				return err
			}
			if !ok {
				spinner.Warning("No password configured; run the generator's setup first")
				return nil
			}
			spinner.Success("Generator is configured")
			return nil
		},
	}
}
