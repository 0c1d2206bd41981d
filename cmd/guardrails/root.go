package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"openserver-hq/guardrails/pkg/cli"
	"openserver-hq/guardrails/pkg/config"
)

var (
	// Global flags
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guardrails",
	Short: "Guardrails - multilingual content moderation",
	Long: `Guardrails decides whether text may pass to or from a language model.

Each request is scored by a chain of moderation engines (a built-in
heuristic, external moderation services, a native moderation API),
their verdicts are fused under the cultural profile of the text's
language, and the result is one of allow, warn or block. Warned and
blocked text can be mitigated: PII is masked and violent phrasing is
softened.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadEnvFile,
}

// Execute runs the root command and exits with the status matching the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "guardrails.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadEnvFile loads the dotenv file into the process environment so
// GUARDRAILS_* overrides and engine API keys can live next to the config.
// Variables already set win. A missing default file is not an error.
func loadEnvFile(cmd *cobra.Command, _ []string) error {
	if envFile == "" {
		return nil
	}
	err := godotenv.Load(envFile)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return cli.NewConfigError("", fmt.Sprintf("failed to load env file %q: %v", envFile, err))
}

// loadConfig loads the configuration file with environment overrides. When
// the default file does not exist, the built-in defaults are used and the
// returned path is empty, which disables policy reload.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", configError(err)
			}
			return cfg, "", nil
		}
		return nil, "", cli.NewConfigError("", fmt.Sprintf("cannot read config file %q: %v", cfgFile, err))
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, "", configError(err)
	}
	return cfg, cfgFile, nil
}

// configError converts a configuration failure into a cli.ConfigError,
// keeping the first offending field when there is one.
func configError(err error) error {
	var ve config.ValidationError
	if errors.As(err, &ve) && len(ve.Errors) == 1 {
		return cli.NewConfigError(ve.Errors[0].Field, ve.Errors[0].Message)
	}
	return cli.NewConfigError("", err.Error())
}
