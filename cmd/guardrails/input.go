package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"openserver-hq/guardrails/pkg/app"
	"openserver-hq/guardrails/pkg/cli"
)

// maxLineBytes bounds a single batch line.
const maxLineBytes = 1 << 20

// readText returns the arguments joined by spaces, or stdin when there are
// none.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// batchLine is one non-blank line of a batch file.
type batchLine struct {
	Number int
	Text   string
}

// readLines reads the non-blank lines of path, or of stdin when path is "-".
func readLines(cmd *cobra.Command, path string) ([]batchLine, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var lines []batchLine
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for n := 1; sc.Scan(); n++ {
		if text := sc.Text(); strings.TrimSpace(text) != "" {
			lines = append(lines, batchLine{Number: n, Text: text})
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line longer than %d bytes", maxLineBytes)
		}
		return nil, err
	}
	return lines, nil
}

// newApp loads the configuration and builds the pipeline for one-shot
// commands. Logs go to stderr at warn level unless --verbose is set.
func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	} else {
		cfg.Telemetry.Logging.Level = "warn"
	}
	cfg.Telemetry.Logging.Format = "text"

	a, err := app.New(cfg, app.Options{LogWriter: cmd.ErrOrStderr()})
	if err != nil {
		return nil, cli.NewCommandError(cmd.Name(), err)
	}
	return a, nil
}
