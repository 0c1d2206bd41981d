package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"openserver-hq/guardrails/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file with environment overrides, check every
field and print a summary. All problems are reported at once.

Examples:
  guardrails validate --config /etc/guardrails/guardrails.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var ve config.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintf(out, "✗ %s has %d problem(s):\n", cfgFile, len(ve.Errors))
			for _, fe := range ve.Errors {
				fmt.Fprintf(out, "  - %s: %s\n", fe.Field, fe.Message)
			}
		}
		return configError(err)
	}

	fmt.Fprintf(out, "✓ %s is valid\n", cfgFile)
	fmt.Fprintf(out, "  thresholds:  warn %.2f, block %.2f\n", cfg.Moderation.WarnThreshold, cfg.Moderation.BlockThreshold)

	engines := cfg.EngineDescriptors()
	if len(engines) == 0 {
		fmt.Fprintln(out, "  engines:     heuristic (default)")
	}
	for _, e := range engines {
		fmt.Fprintf(out, "  engine:      %s (%s)\n", e.Name, e.Kind)
	}

	profiles := make([]string, 0, len(cfg.Profiles))
	for lang := range cfg.Profiles {
		profiles = append(profiles, lang)
	}
	sort.Strings(profiles)
	fmt.Fprintf(out, "  profiles:    %v\n", profiles)

	t := cfg.Locale.Translation
	if t.Enabled {
		fmt.Fprintf(out, "  translation: to %s, cache %s\n", t.Pivot, t.Cache.Backend)
	} else {
		fmt.Fprintln(out, "  translation: disabled")
	}
	if cfg.Reload.Watch || cfg.Reload.Schedule != "" {
		fmt.Fprintf(out, "  reload:      watch=%t schedule=%q\n", cfg.Reload.Watch, cfg.Reload.Schedule)
	}
	return nil
}
