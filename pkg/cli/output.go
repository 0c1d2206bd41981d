package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is human-readable output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON output.
	FormatJSON OutputFormat = "json"
	// FormatJSONL is one compact JSON document per line, for batch output.
	FormatJSONL OutputFormat = "jsonl"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected text, json or jsonl)", s)
	}
}

// TextRenderer is implemented by results with a custom text rendering.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// TextFormatter formats output as plain text. Values implementing
// TextRenderer render themselves; anything else is printed with %v.
type TextFormatter struct{}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	if r, ok := data.(TextRenderer); ok {
		return r.RenderText(w)
	}
	_, err := fmt.Fprintf(w, "%v\n", data)
	return err
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// NewFormatter creates a formatter for the named format.
func NewFormatter(name string) (Formatter, error) {
	format, err := ParseFormat(name)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatJSONL:
		return &JSONFormatter{}, nil
	default:
		return &TextFormatter{}, nil
	}
}
