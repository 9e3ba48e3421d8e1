package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// DefaultLibreTranslateURL is the public LibreTranslate translate endpoint.
const DefaultLibreTranslateURL = "https://libretranslate.de/translate"

// LibreTranslateUpstream forwards requests to a LibreTranslate-compatible API.
// LibreTranslate already answers in the client contract, so its body is
// passed through unchanged.
type LibreTranslateUpstream struct {
	endpoint *url.URL
}

// NewLibreTranslateUpstream creates the Libre variant for the given translate URL.
// An empty URL selects DefaultLibreTranslateURL.
func NewLibreTranslateUpstream(endpoint string) (*LibreTranslateUpstream, error) {
	if endpoint == "" {
		endpoint = DefaultLibreTranslateURL
	}
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("libretranslate url: %w", err)
	}
	return &LibreTranslateUpstream{endpoint: u}, nil
}

// Provider implements Upstream.
func (l *LibreTranslateUpstream) Provider() Provider {
	return ProviderLibre
}

// NewRequest implements Upstream.
func (l *LibreTranslateUpstream) NewRequest(ctx context.Context, req TranslationRequest) (*http.Request, error) {
	return newJSONRequest(ctx, l.endpoint.String(), req)
}

// Normalize implements Upstream. Any JSON body is returned verbatim with the
// upstream status code, including non-2xx replies.
func (l *LibreTranslateUpstream) Normalize(statusCode int, body []byte) (*Result, error) {
	if !json.Valid(body) {
		f := newFailure(ProviderLibre, KindInvalidResponse)
		f.Status = statusCode
		return nil, f
	}
	return &Result{
		Provider:   ProviderLibre,
		StatusCode: statusCode,
		Body:       json.RawMessage(body),
	}, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}
