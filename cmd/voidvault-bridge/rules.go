package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/starwell/voidvault-bridge/pkg/config"
	"github.com/starwell/voidvault-bridge/pkg/native"
	"github.com/starwell/voidvault-bridge/pkg/policy"
	"github.com/starwell/voidvault-bridge/pkg/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage per-domain password policies",
	}
	cmd.AddCommand(rulesListCmd(), rulesGetCmd(), rulesSetCmd(), rulesDeleteCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRules()
			if err != nil {
				return err
			}
			all, err := store.All()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				pterm.Info.Printf("No policies in %s\n", store.Path())
				return nil
			}

			domains := lo.Keys(all)
			sort.Strings(domains)
			data := pterm.TableData{policyHeader}
			for _, domain := range domains {
				data = append(data, policyRow(domain, all[domain]))
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

func rulesGetCmd() *cobra.Command {
	var fromGenerator bool

	cmd := &cobra.Command{
		Use:   "get <domain>",
		Short: "Show the policy for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := rules.NormalizeDomain(args[0])
			data := pterm.TableData{append([]string{"Source"}, policyHeader...)}

			store, err := openRules()
			if err != nil {
				return err
			}
			local, err := store.Get(domain)
			if err != nil {
				return err
			}
			if local != nil {
				data = append(data, append([]string{"local"}, policyRow(domain, *local)...))
			}

			if fromGenerator {
				dialer, err := newDialer()
				if err != nil {
					return err
				}
				maxLength, charTypes, err := native.GetRules(cmd.Context(), dialer, domain, config.GetGenerator().QueryTimeout())
				if err != nil {
					return err
				}
				p := policy.FromGeneratorRules(maxLength, charTypes)
				data = append(data, append([]string{"generator"}, policyRow(domain, *p)...))
			}

			if len(data) == 1 {
				pterm.Info.Printf("No local policy for %s; generator defaults apply\n", domain)
				return nil
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	cmd.Flags().BoolVar(&fromGenerator, "generator", false, "also show the generator's stored defaults (registers the domain at v0 if it is new)")
	return cmd
}

func rulesSetCmd() *cobra.Command {
	var (
		minLength int
		maxLength int
		classes   []string
		disabled  bool
		push      bool
	)

	cmd := &cobra.Command{
		Use:   "set <domain>",
		Short: "Store a policy for a domain",
		Example: `  voidvault-bridge rules set example.com --max 16 --classes lowercase,uppercase,digit
  voidvault-bridge rules set bank.example --min 8 --max 12 --classes digit --push`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := rules.NormalizeDomain(args[0])
			p, err := buildPolicy(!disabled, minLength, maxLength, classes)
			if err != nil {
				return err
			}

			store, err := openRules()
			if err != nil {
				return err
			}
			if err := store.Set(domain, p); err != nil {
				return err
			}
			pterm.Success.Printf("Stored policy for %s\n", domain)

			if push {
				maxLen, mask := generatorRules(p)
				if err := pushRules(cmd, domain, maxLen, mask); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&minLength, "min", -1, "minimum length; shorter output is flagged, never padded")
	cmd.Flags().IntVar(&maxLength, "max", -1, "maximum length; longer output is truncated")
	cmd.Flags().StringSliceVar(&classes, "classes", []string{string(policy.ClassLowercase), string(policy.ClassUppercase), string(policy.ClassDigit)}, "allowed character classes: "+strings.Join(classNames(), ", "))
	cmd.Flags().BoolVar(&disabled, "disabled", false, "store the policy but leave output untouched")
	cmd.Flags().BoolVar(&push, "push", false, "also store max length and classes as the generator's defaults")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	var push bool

	cmd := &cobra.Command{
		Use:     "delete <domain>",
		Aliases: []string{"rm"},
		Short:   "Remove the policy for a domain",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := rules.NormalizeDomain(args[0])
			store, err := openRules()
			if err != nil {
				return err
			}
			if err := store.Delete(domain); err != nil {
				return err
			}
			pterm.Success.Printf("Removed policy for %s\n", domain)

			if push {
				return pushRules(cmd, domain, 0, policy.AllClassesMask)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&push, "push", false, "also reset the generator's defaults for the domain")
	return cmd
}

func pushRules(cmd *cobra.Command, domain string, maxLength uint16, mask uint8) error {
	dialer, err := newDialer()
	if err != nil {
		return err
	}
	if err := native.SetRules(cmd.Context(), dialer, domain, maxLength, mask, config.GetGenerator().QueryTimeout()); err != nil {
		return fmt.Errorf("failed to push rules: %w", err)
	}
	pterm.Success.Printf("Generator defaults for %s updated\n", domain)
	return nil
}

// buildPolicy turns flag values into a policy. Negative lengths mean unset.
func buildPolicy(enabled bool, minLength, maxLength int, classes []string) (policy.Policy, error) {
	p := policy.Policy{Enabled: enabled}
	if minLength >= 0 {
		p.MinLength = policy.Int(minLength)
	}
	if maxLength >= 0 {
		p.MaxLength = policy.Int(maxLength)
	}
	if p.MinLength != nil && p.MaxLength != nil && *p.MinLength > *p.MaxLength {
		return policy.Policy{}, fmt.Errorf("--min %d is larger than --max %d", minLength, maxLength)
	}

	for _, name := range classes {
		c := policy.Class(strings.TrimSpace(name))
		if c == "" {
			continue
		}
		if !c.Valid() {
			return policy.Policy{}, fmt.Errorf("unknown character class %q (want one of %s)", name, strings.Join(classNames(), ", "))
		}
		p.AllowedClasses = append(p.AllowedClasses, c)
	}
	p.AllowedClasses = lo.Uniq(p.AllowedClasses)
	return p, p.Validate()
}

// generatorRules maps a policy onto the generator's stored defaults. A
// disabled policy resets them.
func generatorRules(p policy.Policy) (maxLength uint16, mask uint8) {
	if !p.Enabled {
		return 0, policy.AllClassesMask
	}
	if p.MaxLength != nil {
		maxLength = uint16(min(*p.MaxLength, math.MaxUint16))
	}
	return maxLength, p.Mask()
}

var policyHeader = []string{"Domain", "Enabled", "Min", "Max", "Classes"}

func policyRow(domain string, p policy.Policy) []string {
	length := func(n *int) string {
		if n == nil {
			return "-"
		}
		return strconv.Itoa(*n)
	}
	classes := lo.Map(p.AllowedClasses, func(c policy.Class, _ int) string { return string(c) })
	return []string{domain, strconv.FormatBool(p.Enabled), length(p.MinLength), length(p.MaxLength), strings.Join(classes, ",")}
}

func classNames() []string {
	return lo.Map(policy.AllClasses, func(c policy.Class, _ int) string { return string(c) })
}
