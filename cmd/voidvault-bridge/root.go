package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starwell/voidvault-bridge/pkg/config"
	"github.com/starwell/voidvault-bridge/pkg/logging"
	"github.com/starwell/voidvault-bridge/pkg/native"
	"github.com/starwell/voidvault-bridge/pkg/rules"
	"github.com/starwell/voidvault-bridge/pkg/session"
	"github.com/starwell/voidvault-bridge/pkg/ui"
)

const version = "0.1.0"

var (
	settingsPath  string
	overridesPath string
	envFile       string
	hostPath      string
	account       string
	verbose       bool
)

var debugLog *logging.Logger

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "voidvault-bridge",
		Short:         "Type deterministic passwords into browser fields and terminals",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetVerbose(verbose)
			if debugLog == nil {
				debugLog, _ = logging.NewLogger("cli")
			}
			return loadConfig()
		},
	}

	root.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings file (default ~/.voidvault/config.json)")
	root.PersistentFlags().StringVarP(&overridesPath, "config", "c", "", "YAML file overriding settings for this run")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "KEY=value file read before the environment")
	root.PersistentFlags().StringVar(&hostPath, "host", "", "generator host executable (or set "+config.EnvHost+")")
	root.PersistentFlags().StringVar(&account, "account", "", "generator account (or set "+config.EnvAccount+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write debug entries to the log file")

	root.AddCommand(
		browseCmd(),
		typeCmd(),
		rulesCmd(),
		counterCmd(),
		checkCmd(),
		settingsCmd(),
		versionCmd(),
	)

	return root
}

// loadConfig builds the global settings in precedence order: settings file,
// YAML overrides, .env and environment, then flags.
func loadConfig() error {
	if err := config.Initialize(settingsPath); err != nil {
		return err
	}
	cfg := config.Global()

	if overridesPath != "" {
		if err := config.LoadOverrides(cfg, overridesPath); err != nil {
			return err
		}
	}
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}
	config.ApplyEnv(cfg)

	if hostPath != "" {
		cfg.Generator().SetHostPath(hostPath)
	}
	if account != "" {
		cfg.Generator().SetAccount(account)
	}
	return nil
}

func newDialer() (native.Dialer, error) {
	gen := config.GetGenerator()
	path, err := gen.RequireHost()
	if err != nil {
		return nil, fmt.Errorf("%w (use --host or set %s)", err, config.EnvHost)
	}

	hostLog, _ := logging.NewLogger("generator")
	return native.HostConfig{
		Path:    path,
		Account: gen.Account(),
		Stderr:  hostLog.Writer(),
	}.Dialer(), nil
}

func openRules() (*rules.Store, error) {
	return rules.NewStore(config.GetRules().Path())
}

// newSessions builds a session controller from the current settings.
func newSessions() (*session.Controller, *rules.Store, error) {
	dialer, err := newDialer()
	if err != nil {
		return nil, nil, err
	}
	store, err := openRules()
	if err != nil {
		return nil, nil, err
	}

	gen := config.GetGenerator()
	return session.NewController(session.Config{
		Dialer:         dialer,
		Rules:          store,
		Excluded:       config.GetActivation().IsExcluded,
		RequestTimeout: gen.RequestTimeout(),
		QueryTimeout:   gen.QueryTimeout(),
	}), store, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bridge version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Banner("VOIDVAULT"))
			fmt.Fprintf(cmd.OutOrStdout(), "voidvault-bridge v%s\n", version)
			return nil
		},
	}
}
