package main

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/starwell/voidvault-bridge/pkg/config"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or edit the saved settings",
		Long: `Edits the settings file directly. Values from --config, the environment and
flags apply to a single run and are never written back.`,
	}
	cmd.AddCommand(settingsShowCmd(), settingsSetCmd(), settingsExcludeCmd(), settingsResetCmd())
	return cmd
}

// savedSettings loads the settings file alone, without per-run overrides.
func savedSettings() (*config.Manager, error) {
	return config.New(settingsPath)
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every section in effect for this run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Global()
			for _, section := range cfg.GetSections() {
				pterm.DefaultSection.Println(section.Title())
				pterm.Println(pterm.Gray(section.Description()))

				data := section.Data()
				keys := lo.Keys(data)
				sort.Strings(keys)
				table := pterm.TableData{{"Key", "Value"}}
				for _, k := range keys {
					table = append(table, []string{section.ID() + "." + k, fmt.Sprint(data[k])})
				}
				if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
					return err
				}
			}
			if store, ok := cfg.Store().(*config.FileStore); ok {
				pterm.Info.Printf("Saved in %s\n", store.Path())
			}
			return nil
		},
	}
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <section> <key> <value>",
		Short: "Change one saved setting",
		Example: `  voidvault-bridge settings set generator host_path /usr/local/bin/voidvault-host
  voidvault-bridge settings set generator request_timeout 10s
  voidvault-bridge settings set rules watch false`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := savedSettings()
			if err != nil {
				return err
			}
			section, ok := cfg.GetSection(args[0])
			if !ok {
				ids := lo.Map(cfg.GetSections(), func(s config.Section, _ int) string { return s.ID() })
				return fmt.Errorf("unknown section %q (want one of %v)", args[0], ids)
			}
			if _, known := section.Data()[args[1]]; !known {
				return fmt.Errorf("section %s has no key %q", args[0], args[1])
			}

			// Scalars are read as YAML so "false" and "750" keep their types.
			var value interface{}
			if err := yaml.Unmarshal([]byte(args[2]), &value); err != nil {
				return fmt.Errorf("invalid value %q: %w", args[2], err)
			}
			if err := section.SetData(map[string]interface{}{args[1]: value}); err != nil {
				return err
			}
			if err := cfg.SaveAll(); err != nil {
				return err
			}
			pterm.Success.Printf("%s.%s updated\n", args[0], args[1])
			return nil
		},
	}
}

func settingsExcludeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "Manage domains the bridge never activates on",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add <pattern>",
		Short:   "Exclude domains matching a glob such as *.bank.example",
		Example: `  voidvault-bridge settings exclude add "**.bank.example"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := savedSettings()
			if err != nil {
				return err
			}
			if err := cfg.Activation().AddExclusion(args[0]); err != nil {
				return err
			}
			if err := cfg.SaveAll(); err != nil {
				return err
			}
			pterm.Success.Printf("Excluded %s\n", args[0])
			return nil
		},
	}, &cobra.Command{
		Use:   "remove <pattern>",
		Short: "Allow activation on a previously excluded pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := savedSettings()
			if err != nil {
				return err
			}
			if err := cfg.Activation().RemoveExclusion(args[0]); err != nil {
				return err
			}
			if err := cfg.SaveAll(); err != nil {
				return err
			}
			pterm.Success.Printf("Removed %s\n", args[0])
			return nil
		},
	}, &cobra.Command{
		Use:   "test <domain>",
		Short: "Report whether a domain is excluded for this run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.GetActivation().IsExcluded(args[0]) {
				pterm.Warning.Printf("%s is excluded\n", args[0])
			} else {
				pterm.Info.Printf("%s is allowed\n", args[0])
			}
			return nil
		},
	})
	return cmd
}

func settingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore every saved setting to its default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := savedSettings()
			if err != nil {
				return err
			}
			cfg.ResetAll()
			if err := cfg.SaveAll(); err != nil {
				return err
			}
			pterm.Success.Println("Settings reset")
			return nil
		},
	}
}
