package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
)

type rendered struct{ name string }

func (r rendered) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "rendered %s\n", r.name)
	return err
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{" jsonl ", FormatJSONL, false},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"plain value", "test message", "test message\n"},
		{"renderer", rendered{name: "decision"}, "rendered decision\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&TextFormatter{}).FormatTo(&buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	data := map[string]any{"action": "block", "text": "<b>&</b>"}

	t.Run("indented", func(t *testing.T) {
		var buf bytes.Buffer
		if err := (&JSONFormatter{Indent: true}).FormatTo(&buf, data); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\n  \"action\"") {
			t.Errorf("output not indented: %q", buf.String())
		}
		if !strings.Contains(buf.String(), "<b>&</b>") {
			t.Errorf("HTML should not be escaped: %q", buf.String())
		}
	})

	t.Run("compact", func(t *testing.T) {
		var buf bytes.Buffer
		if err := (&JSONFormatter{}).FormatTo(&buf, data); err != nil {
			t.Fatal(err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("compact output should be a single line: %q", buf.String())
		}
		var got map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got["action"] != "block" {
			t.Errorf("action = %v, want block", got["action"])
		}
	})
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		want    Formatter
		wantErr bool
	}{
		{"text", &TextFormatter{}, false},
		{"json", &JSONFormatter{Indent: true}, false},
		{"jsonl", &JSONFormatter{}, false},
		{"xml", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFormatter(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFormatter(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if fmt.Sprintf("%#v", got) != fmt.Sprintf("%#v", tt.want) {
				t.Errorf("NewFormatter(%q) = %#v, want %#v", tt.name, got, tt.want)
			}
		})
	}
}
