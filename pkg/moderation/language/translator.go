package language

import (
	"context"
	"errors"
	"strings"

	"openserver-hq/guardrails/pkg/remote"
)

// ErrNoTranslation is returned by NopTranslator and for empty translations.
var ErrNoTranslation = errors.New("no translation available")

// Translator translates text between languages.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// NopTranslator never translates.
type NopTranslator struct{}

// Translate always returns ErrNoTranslation.
func (NopTranslator) Translate(context.Context, string, string, string) (string, error) {
	return "", ErrNoTranslation
}

// HTTPTranslator calls a LibreTranslate-compatible service.
type HTTPTranslator struct {
	endpoint string
	apiKey   string
	client   *remote.Client
}

// NewHTTPTranslator creates a translator posting to endpoint.
func NewHTTPTranslator(endpoint, apiKey string, client *remote.Client) *HTTPTranslator {
	return &HTTPTranslator{endpoint: endpoint, apiKey: apiKey, client: client}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate implements Translator.
func (t *HTTPTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	req := translateRequest{
		Q:      text,
		Source: baseCode(from),
		Target: baseCode(to),
		Format: "text",
		APIKey: t.apiKey,
	}
	var resp translateResponse
	if err := t.client.DoJSON(ctx, t.endpoint, req, &resp, nil); err != nil {
		return "", err
	}
	if resp.TranslatedText == "" {
		return "", &remote.ParseError{Service: t.client.Name(), Cause: ErrNoTranslation}
	}
	return resp.TranslatedText, nil
}

// baseCode reduces a tag to its base language, which is what translation
// services key on.
func baseCode(lang string) string {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return lang[:i]
	}
	return lang
}
