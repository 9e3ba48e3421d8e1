package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Provider identifies an upstream translation service.
type Provider string

const (
	// ProviderLibre is a LibreTranslate-compatible upstream. It is always available.
	ProviderLibre Provider = "libretranslate"
	// ProviderGoogle is the Google Cloud Translation v2 API.
	ProviderGoogle Provider = "google"
)

// Upstream is one provider variant: it knows how to build the outbound call
// and how to map that provider's reply onto the client contract.
// Implementations hold no per-request state and are safe for concurrent use.
type Upstream interface {
	// Provider returns the variant tag.
	Provider() Provider

	// NewRequest builds the outbound HTTP request for req.
	NewRequest(ctx context.Context, req TranslationRequest) (*http.Request, error)

	// Normalize maps a decoded-or-not upstream reply to a client Result.
	// A returned error is always a *Failure.
	Normalize(statusCode int, body []byte) (*Result, error)
}

// Result is a successful, normalized reply ready to be written to the client.
type Result struct {
	Provider   Provider
	StatusCode int
	// Body is the JSON document returned to the client as-is.
	Body json.RawMessage
}

// translatePayload is the outbound body shared by both providers.
type translatePayload struct {
	Q      string `json:"q"`
	Source string `json:"source"` // e.g., "en"
	Target string `json:"target"` // e.g., "fr"
	Format string `json:"format"` // "text" or "html"
}

func newJSONRequest(ctx context.Context, target string, req TranslationRequest) (*http.Request, error) {
	payload := translatePayload{
		Q:      req.Text,
		Source: req.SourceLang,
		Target: req.TargetLang,
		Format: req.Format,
	}
	if payload.Format == "" {
		payload.Format = FormatText
	}

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(&payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

// redactURL hides credential query parameters so a URL can be logged.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if !q.Has("key") {
		return u.Redacted()
	}
	q.Set("key", "REDACTED")
	clone := *u
	clone.RawQuery = q.Encode()
	return clone.Redacted()
}
