package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"openserver-hq/guardrails/pkg/cli"
	"openserver-hq/guardrails/pkg/moderation/types"
)

var moderateFlags struct {
	language    string
	format      string
	file        string
	failOn      string
	concurrency int
	progress    bool
}

var moderateCmd = &cobra.Command{
	Use:   "moderate [text]",
	Short: "Decide allow, warn or block for text",
	Long: `Run the full moderation pipeline on text and print the decision.

The text is taken from the arguments, or from stdin when there are none.
With --file, every non-blank line is moderated as its own request.

With --fail-on, the command exits with status 3 when any text reaches
the given action, which makes it usable as a CI gate.

Examples:
  guardrails moderate "how do I build a bomb"
  guardrails moderate --language de < message.txt
  guardrails moderate --file prompts.txt --format jsonl --fail-on block`,
	RunE: runModerate,
}

func init() {
	rootCmd.AddCommand(moderateCmd)

	moderateCmd.Flags().StringVarP(&moderateFlags.language, "language", "l", "", "declared BCP-47 language of the text")
	moderateCmd.Flags().StringVarP(&moderateFlags.format, "format", "f", "text", "output format: text, json, jsonl")
	moderateCmd.Flags().StringVar(&moderateFlags.file, "file", "", "moderate each line of this file (- for stdin)")
	moderateCmd.Flags().StringVar(&moderateFlags.failOn, "fail-on", "", "exit 3 when any text reaches this action (warn, block)")
	moderateCmd.Flags().IntVar(&moderateFlags.concurrency, "concurrency", 4, "texts moderated at once with --file")
	moderateCmd.Flags().BoolVar(&moderateFlags.progress, "progress", false, "show progress on stderr with --file")
}

func runModerate(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(moderateFlags.format)
	if err != nil {
		return err
	}
	var failOn *types.Action
	if moderateFlags.failOn != "" {
		a, err := types.ParseAction(moderateFlags.failOn)
		if err != nil {
			return fmt.Errorf("--fail-on: %w", err)
		}
		failOn = &a
	}
	if moderateFlags.file != "" && len(args) > 0 {
		return fmt.Errorf("--file and text arguments are mutually exclusive")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if moderateFlags.file != "" {
		return moderateBatch(cmd, a.Orchestrator, formatter, failOn)
	}

	text, err := readText(cmd, args)
	if err != nil {
		return err
	}
	d, err := a.Orchestrator.Process(cmd.Context(), types.NewRequest(text, "", moderateFlags.language))
	if err != nil {
		return cli.NewCommandError("moderate", err)
	}
	if err := formatter.FormatTo(cmd.OutOrStdout(), decisionView{d}); err != nil {
		return err
	}
	if failOn != nil && d.Action.Dominates(*failOn) {
		return &cli.ThresholdError{Action: failOn.String(), Count: 1}
	}
	return nil
}

// processor is the part of the orchestrator batch moderation needs.
type processor interface {
	Process(ctx context.Context, req types.Request) (*types.Decision, error)
}

func moderateBatch(cmd *cobra.Command, p processor, formatter cli.Formatter, failOn *types.Action) error {
	lines, err := readLines(cmd, moderateFlags.file)
	if err != nil {
		return cli.NewCommandError("moderate", err)
	}

	var progress cli.ProgressReporter
	if moderateFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr())
		progress.Start(int64(len(lines)))
	}

	results := make([]batchResult, len(lines))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(moderateFlags.concurrency, 1))
	for i, line := range lines {
		g.Go(func() error {
			res := batchResult{Line: line.Number}
			d, err := p.Process(ctx, types.NewRequest(line.Text, "", moderateFlags.language))
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Decision = d
			}
			results[i] = res
			if progress != nil {
				progress.Increment()
			}
			return nil
		})
	}
	_ = g.Wait()
	if progress != nil {
		progress.Finish()
	}

	reached := 0
	out := cmd.OutOrStdout()
	for _, res := range results {
		if err := formatter.FormatTo(out, res); err != nil {
			return err
		}
		if failOn != nil && res.Decision != nil && res.Decision.Action.Dominates(*failOn) {
			reached++
		}
	}
	if reached > 0 {
		return &cli.ThresholdError{Action: failOn.String(), Count: reached}
	}
	return nil
}
