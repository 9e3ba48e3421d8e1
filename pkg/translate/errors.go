package translate

import (
	"encoding/json"
	"fmt"
)

// FailureKind classifies an upstream failure.
type FailureKind string

const (
	// KindTransport covers timeouts, DNS failures, refused or reset connections
	// and errors while reading the upstream body.
	KindTransport FailureKind = "transport_failure"
	// KindInvalidResponse means the upstream answered with a body that is not JSON.
	KindInvalidResponse FailureKind = "invalid_upstream_response"
	// KindUnexpectedShape means the body is JSON but lacks the translation path.
	KindUnexpectedShape FailureKind = "unexpected_upstream_shape"
)

// Failure is a gateway-side failure talking to an upstream.
type Failure struct {
	Provider Provider
	Kind     FailureKind
	// Message is the client-facing error string.
	Message string
	// Detail carries the transport error text, if any.
	Detail string
	// Status is the upstream status code, zero when no response was received.
	Status int
	// Raw is the decoded upstream body for shape failures.
	Raw json.RawMessage

	err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	switch {
	case f.Detail != "":
		return fmt.Sprintf("%s: %s: %s", f.Provider, f.Message, f.Detail)
	case f.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", f.Provider, f.Message, f.Status)
	default:
		return fmt.Sprintf("%s: %s", f.Provider, f.Message)
	}
}

// Unwrap returns the underlying transport error, if any.
func (f *Failure) Unwrap() error {
	return f.err
}

func newFailure(p Provider, kind FailureKind) *Failure {
	return &Failure{Provider: p, Kind: kind, Message: failureMessage(p, kind)}
}

func newTransportFailure(p Provider, err error) *Failure {
	f := newFailure(p, KindTransport)
	f.Detail = err.Error()
	f.err = err
	return f
}

// failureMessage returns the client-facing error string for a provider and kind.
func failureMessage(p Provider, kind FailureKind) string {
	if p == ProviderGoogle {
		switch kind {
		case KindTransport:
			return "google upstream failed"
		case KindInvalidResponse:
			return "invalid google response"
		case KindUnexpectedShape:
			return "unexpected google response"
		}
	}
	switch kind {
	case KindTransport:
		return "upstream request failed"
	case KindInvalidResponse:
		return "invalid upstream response"
	default:
		return "unexpected upstream response"
	}
}
