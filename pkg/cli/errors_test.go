package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{"with field", NewConfigError("server.listen_address", "missing required field"), "config error in server.listen_address: missing required field"},
		{"without field", NewConfigError("", "file not found"), "config error: file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := NewCommandError("serve", underlying)

	if want := "command serve failed: underlying error"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is() should see through CommandError")
	}
}

func TestThresholdError(t *testing.T) {
	if got := (&ThresholdError{Action: "block", Count: 1}).Error(); got != `text reached action "block"` {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ThresholdError{Action: "warn", Count: 4}).Error(); got != `4 texts reached action "warn"` {
		t.Errorf("Error() = %q", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitFailure},
		{"config", NewConfigError("", "bad"), ExitConfig},
		{"wrapped config", fmt.Errorf("load: %w", NewConfigError("x", "bad")), ExitConfig},
		{"threshold", &ThresholdError{Action: "block", Count: 1}, ExitBlocked},
		{"command wrapping threshold", NewCommandError("moderate", &ThresholdError{Action: "block", Count: 2}), ExitBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
