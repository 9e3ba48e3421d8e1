package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// DefaultGoogleTranslateURL is the Google Cloud Translation v2 endpoint.
const DefaultGoogleTranslateURL = "https://translation.googleapis.com/language/translate/v2"

// GoogleUpstream forwards requests to the Google Translate v2 REST API using
// an API key and collapses its reply to {"translatedText": ...}.
type GoogleUpstream struct {
	endpoint *url.URL
	apiKey   string
}

// googleResponse is the subset of the v2 reply the gateway reads.
type googleResponse struct {
	Data *struct {
		Translations []struct {
			TranslatedText *string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// clientTranslation is the normalized client body.
type clientTranslation struct {
	TranslatedText string `json:"translatedText"`
}

var errNoTranslation = errors.New("data.translations[0].translatedText not found")

// NewGoogleUpstream creates the Google variant. The key is sent as the "key"
// query parameter and never in the body.
func NewGoogleUpstream(endpoint, apiKey string) (*GoogleUpstream, error) {
	if apiKey == "" {
		return nil, errors.New("google api key is required")
	}
	if endpoint == "" {
		endpoint = DefaultGoogleTranslateURL
	}
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("google translate url: %w", err)
	}
	return &GoogleUpstream{endpoint: u, apiKey: apiKey}, nil
}

// Provider implements Upstream.
func (g *GoogleUpstream) Provider() Provider {
	return ProviderGoogle
}

// NewRequest implements Upstream.
func (g *GoogleUpstream) NewRequest(ctx context.Context, req TranslationRequest) (*http.Request, error) {
	u := *g.endpoint
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()
	return newJSONRequest(ctx, u.String(), req)
}

// Normalize implements Upstream.
func (g *GoogleUpstream) Normalize(statusCode int, body []byte) (*Result, error) {
	if !json.Valid(body) {
		f := newFailure(ProviderGoogle, KindInvalidResponse)
		f.Status = statusCode
		return nil, f
	}

	text, err := extractTranslation(body)
	if err != nil {
		f := newFailure(ProviderGoogle, KindUnexpectedShape)
		f.Status = statusCode
		f.Raw = compactJSON(body)
		f.err = err
		return nil, f
	}

	out, err := json.Marshal(clientTranslation{TranslatedText: text})
	if err != nil {
		f := newFailure(ProviderGoogle, KindUnexpectedShape)
		f.Status = statusCode
		f.err = err
		return nil, f
	}
	return &Result{
		Provider:   ProviderGoogle,
		StatusCode: statusCode,
		Body:       out,
	}, nil
}

// extractTranslation reads data.translations[0].translatedText. Missing keys,
// an empty list or a wrong type anywhere on the path is an error.
func extractTranslation(body []byte) (string, error) {
	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode google response: %w", err)
	}
	if resp.Data == nil || len(resp.Data.Translations) == 0 {
		return "", errNoTranslation
	}
	first := resp.Data.Translations[0]
	if first.TranslatedText == nil {
		return "", errNoTranslation
	}
	return *first.TranslatedText, nil
}

func compactJSON(body []byte) json.RawMessage {
	buf := new(bytes.Buffer)
	if err := json.Compact(buf, body); err != nil {
		return json.RawMessage(body)
	}
	return buf.Bytes()
}
