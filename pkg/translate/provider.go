package translate

import "strings"

// ProviderConfig is the process-wide provider configuration.
// It is built once at startup and never mutated afterwards.
type ProviderConfig struct {
	GoogleAPIKey string
}

// HasGoogleCredential reports whether the Google path can be used at all.
func (c ProviderConfig) HasGoogleCredential() bool {
	return strings.TrimSpace(c.GoogleAPIKey) != ""
}

// Select picks the upstream for a request. Google is chosen only when the
// client asked for it and a credential is configured; every other case,
// including a Google request without a credential, falls back to Libre.
func Select(hint ProviderHint, cfg ProviderConfig) Provider {
	if hint == HintGoogle && cfg.HasGoogleCredential() {
		return ProviderGoogle
	}
	return ProviderLibre
}
