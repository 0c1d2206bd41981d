package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"openserver-hq/guardrails/pkg/cli"
)

const minimalConfig = `moderation:
  warn_threshold: 0.3
  block_threshold: 0.7
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args. Flag state is global, so every
// run resets it and passes --config and --env-file explicitly unless the
// caller does.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cfgFile, envFile, verbose = "", "", false
	serveFlags.listenAddress, serveFlags.logLevel, serveFlags.dryRun = "", "", false
	moderateFlags.language, moderateFlags.format, moderateFlags.file = "", "text", ""
	moderateFlags.failOn, moderateFlags.concurrency, moderateFlags.progress = "", 4, false
	classifyFlags.language, classifyFlags.format = "", "text"
	mitigateFormat, versionFormat = "text", "text"

	if !slices.Contains(args, "--config") {
		args = append(args, "--config", writeFile(t, "guardrails.yaml", minimalConfig))
	}
	if !slices.Contains(args, "--env-file") {
		args = append(args, "--env-file", "")
	}

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "Guardrails "+Version) {
		t.Errorf("output = %q, want version line", out)
	}

	out, err = execute(t, "", "version", "--format", "json")
	if err != nil {
		t.Fatalf("version --format json error = %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if info["version"] != Version || info["commit"] != GitCommit {
		t.Errorf("info = %v", info)
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out, err := execute(t, "", "validate")
		if err != nil {
			t.Fatalf("validate error = %v", err)
		}
		if !strings.Contains(out, "is valid") || !strings.Contains(out, "heuristic (default)") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "moderation:\n  warn_threshold: 0.9\n  block_threshold: 0.5\nreload:\n  schedule: \"not cron\"\n")
		out, err := execute(t, "", "validate", "--config", path)
		if err == nil {
			t.Fatal("validate should fail")
		}
		if code := cli.ExitCode(err); code != cli.ExitConfig {
			t.Errorf("ExitCode() = %d, want %d", code, cli.ExitConfig)
		}
		for _, field := range []string{"moderation.thresholds", "reload.schedule"} {
			if !strings.Contains(out, field) {
				t.Errorf("output should list %s: %q", field, out)
			}
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := execute(t, "", "validate", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
		if code := cli.ExitCode(err); code != cli.ExitConfig {
			t.Errorf("ExitCode() = %d, want %d (err %v)", code, cli.ExitConfig, err)
		}
	})
}

type decisionJSON struct {
	Action     string   `json:"action"`
	Language   string   `json:"language"`
	Categories []string `json:"categories"`
}

func TestModerateCommand(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "", "moderate", "--language", "en", "--format", "json", "we will attack and kill them")
		if err != nil {
			t.Fatalf("moderate error = %v", err)
		}
		var d decisionJSON
		if err := json.Unmarshal([]byte(out), &d); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if d.Action != "warn" || d.Language != "en" || !slices.Contains(d.Categories, "violence") {
			t.Errorf("decision = %+v, want warn/en/violence", d)
		}
	})

	t.Run("text from stdin", func(t *testing.T) {
		out, err := execute(t, "a quiet walk in the park\n", "moderate", "--language", "en")
		if err != nil {
			t.Fatalf("moderate error = %v", err)
		}
		if !strings.Contains(out, "Action:     allow") {
			t.Errorf("output = %q, want allow", out)
		}
	})

	t.Run("fail on", func(t *testing.T) {
		_, err := execute(t, "", "moderate", "--language", "en", "--fail-on", "warn", "we will attack and kill them")
		if code := cli.ExitCode(err); code != cli.ExitBlocked {
			t.Errorf("ExitCode() = %d, want %d (err %v)", code, cli.ExitBlocked, err)
		}
	})

	t.Run("bad fail on", func(t *testing.T) {
		if _, err := execute(t, "", "moderate", "--fail-on", "maybe", "x"); err == nil {
			t.Error("expected error for unknown action")
		}
	})

	t.Run("env file overrides config", func(t *testing.T) {
		const key = "GUARDRAILS_MODERATION_BLOCK_THRESHOLD"
		t.Cleanup(func() { os.Unsetenv(key) })
		env := writeFile(t, ".env", key+"=0.5\n")

		out, err := execute(t, "", "moderate", "--env-file", env, "--language", "en", "--format", "json", "we will attack and kill them")
		if err != nil {
			t.Fatalf("moderate error = %v", err)
		}
		var d decisionJSON
		if err := json.Unmarshal([]byte(out), &d); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if d.Action != "block" {
			t.Errorf("action = %q, want block with the lowered threshold", d.Action)
		}
	})
}

func TestModerateBatch(t *testing.T) {
	input := writeFile(t, "prompts.txt", "we will attack and kill them\n\nhave a nice day\n")

	out, err := execute(t, "", "moderate", "--file", input, "--language", "en", "--format", "jsonl", "--fail-on", "block")
	if err != nil {
		t.Fatalf("moderate --file error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d result lines, want 2: %q", len(lines), out)
	}
	var results []batchResult
	for _, l := range lines {
		var r batchResult
		if err := json.Unmarshal([]byte(l), &r); err != nil {
			t.Fatalf("invalid JSON line %q: %v", l, err)
		}
		results = append(results, r)
	}
	if results[0].Line != 1 || results[1].Line != 3 {
		t.Errorf("line numbers = %d, %d; want 1, 3", results[0].Line, results[1].Line)
	}
	if results[0].Decision == nil || results[0].Decision.Action.String() != "warn" {
		t.Errorf("first decision = %+v, want warn", results[0].Decision)
	}

	if _, err := execute(t, "", "moderate", "--file", input, "x"); err == nil {
		t.Error("--file with text arguments should fail")
	}
}

func TestMitigateCommand(t *testing.T) {
	out, err := execute(t, "", "mitigate", "write to bob@example.com today")
	if err != nil {
		t.Fatalf("mitigate error = %v", err)
	}
	if strings.Contains(out, "bob@example.com") {
		t.Errorf("address not masked: %q", out)
	}

	out, err = execute(t, "   ", "mitigate")
	if err != nil {
		t.Fatalf("mitigate error = %v", err)
	}
	if !strings.Contains(out, "No text provided") {
		t.Errorf("output = %q, want the no-text message", out)
	}
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "", "classify", "--language", "en", "--format", "json", "a bomb attack")
	if err != nil {
		t.Fatalf("classify error = %v", err)
	}
	var c struct {
		EngineVotes []struct {
			Engine string `json:"engine"`
		} `json:"engine_votes"`
	}
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(c.EngineVotes) != 1 || c.EngineVotes[0].Engine != "heuristic" {
		t.Errorf("votes = %+v, want one heuristic vote", c.EngineVotes)
	}
}

func TestServeDryRun(t *testing.T) {
	out, err := execute(t, "", "serve", "--dry-run", "--listen", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("serve --dry-run error = %v", err)
	}
	if !strings.Contains(out, "service assembled") {
		t.Errorf("output = %q", out)
	}

	_, err = execute(t, "", "serve", "--dry-run", "--log-level", "loud")
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("ExitCode() = %d, want %d for a bad log level (err %v)", code, cli.ExitConfig, err)
	}
}
