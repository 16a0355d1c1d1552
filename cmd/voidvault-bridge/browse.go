package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/starwell/voidvault-bridge/pkg/browser"
	"github.com/starwell/voidvault-bridge/pkg/config"
	"github.com/starwell/voidvault-bridge/pkg/rules"
	"github.com/starwell/voidvault-bridge/pkg/session"
	"github.com/starwell/voidvault-bridge/pkg/ui"
)

func browseCmd() *cobra.Command {
	var (
		headless        bool
		maxTabs         int
		terminalConfirm bool
	)

	cmd := &cobra.Command{
		Use:   "browse <url>...",
		Short: "Open pages in Chromium and generate passwords into their fields",
		Long: `Opens each URL in a Playwright-driven Chromium. Focus a password field and
press the toggle hotkey to start a session; keystrokes are then sent to the
generator and its output replaces the field value. The preview hotkey moves
the domain to its next password version, confirmed on Enter.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sessions, store, err := newSessions()
			if err != nil {
				return err
			}
			defer sessions.Close()

			if config.GetRules().Watch() {
				stop, err := watchRules(ctx, store, sessions)
				if err != nil {
					pterm.Warning.Printf("Not watching %s: %v\n", store.Path(), err)
				} else {
					defer stop()
				}
			}

			toggle, preview, err := config.GetActivation().Hotkeys()
			if err != nil {
				return err
			}
			opts := browser.Options{
				Headless: headless,
				Toggle:   toggle,
				Preview:  preview,
			}
			if terminalConfirm {
				opts.Confirmer = ui.NewTerminalConfirmer()
			}

			manager := browser.NewManager(sessions, opts)
			if maxTabs > 0 {
				manager.SetMaxTabs(maxTabs)
			}

			spinner, _ := pterm.DefaultSpinner.Start("Starting Chromium...")
			if err := manager.Initialize(); err != nil {
				spinner.Fail("Chromium did not start")
				return err
			}
			spinner.Success("Chromium ready")
			defer func() {
				if err := manager.Shutdown(); err != nil {
					pterm.Warning.Println(err)
				}
			}()

			for _, url := range args {
				if _, err := manager.OpenTab(ctx, url); err != nil {
					return fmt.Errorf("open %s: %w", url, err)
				}
			}
			printTabs(manager.ListTabs())
			pterm.Info.Printf("%s toggles a session, %s previews the next version. Close every tab or press Ctrl+C to quit.\n", toggle, preview)

			if err := manager.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "run Chromium without a window")
	cmd.Flags().IntVar(&maxTabs, "max-tabs", browser.DefaultMaxTabs, "maximum number of open tabs")
	cmd.Flags().BoolVar(&terminalConfirm, "terminal-confirm", false, "confirm version changes in this terminal instead of the page")
	return cmd
}

// watchRules resets sessions whose domain policy changed on disk.
func watchRules(ctx context.Context, store *rules.Store, sessions *session.Controller) (func(), error) {
	watcher, err := rules.NewWatcher(store, func(domains []string) {
		for _, domain := range domains {
			if err := sessions.ResetDomain(domain); err != nil {
				debugLog.Warnf("reset %s after rules change: %v", domain, err)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}
	return watcher.Stop, nil
}

func printTabs(tabs []browser.TabInfo) {
	data := pterm.TableData{{"Tab", "Domain", "URL"}}
	for _, tab := range tabs {
		data = append(data, []string{shortID(tab.ID), tab.Domain, tab.URL})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
