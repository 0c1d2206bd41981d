package main

import (
	"strings"

	"github.com/spf13/cobra"

	"openserver-hq/guardrails/pkg/cli"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/server/api"
)

var mitigateFormat string

var mitigateCmd = &cobra.Command{
	Use:   "mitigate [text]",
	Short: "Mask PII and soften violent phrasing",
	Long: `Apply the mitigation rules to text regardless of any decision and
print the sanitized text. This is what the service does to model output
on /v1/inference-mitigation.

Examples:
  guardrails mitigate "call me on 555-123-4567"
  model-output | guardrails mitigate --format json`,
	RunE: runMitigate,
}

var classifyFlags struct {
	language string
	format   string
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Show each engine's verdict without deciding",
	Long: `Resolve the language of text, run the engine chain and print every
engine's scores. No cultural profile is applied and no action is chosen.`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(mitigateCmd)
	rootCmd.AddCommand(classifyCmd)

	mitigateCmd.Flags().StringVarP(&mitigateFormat, "format", "f", "text", "output format: text, json")
	classifyCmd.Flags().StringVarP(&classifyFlags.language, "language", "l", "", "declared BCP-47 language of the text")
	classifyCmd.Flags().StringVarP(&classifyFlags.format, "format", "f", "text", "output format: text, json")
}

func runMitigate(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(mitigateFormat)
	if err != nil {
		return err
	}
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return formatter.FormatTo(cmd.OutOrStdout(), mitigationView{&api.MitigationResponse{Message: api.NoTextMessage}})
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.Orchestrator.Mitigate(cmd.Context(), types.NewRequest(text, "", ""))
	if err != nil {
		return cli.NewCommandError("mitigate", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), mitigationView{api.NewMitigationResponse(plan)})
}

func runClassify(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(classifyFlags.format)
	if err != nil {
		return err
	}
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.Orchestrator.Classify(cmd.Context(), types.NewRequest(text, "", classifyFlags.language))
	if err != nil {
		return cli.NewCommandError("classify", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), classificationView{c})
}
