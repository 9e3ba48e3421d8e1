package translate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// FormatText is the default payload format.
	FormatText = "text"
	// FormatHTML tells the upstream to preserve markup.
	FormatHTML = "html"
)

// ProviderHint is the provider preference expressed by the client.
type ProviderHint int

const (
	// HintDefault leaves provider choice to the gateway.
	HintDefault ProviderHint = iota
	// HintGoogle asks for Google Translate when the server has a credential.
	HintGoogle
)

// String implements fmt.Stringer.
func (h ProviderHint) String() string {
	if h == HintGoogle {
		return "google"
	}
	return "default"
}

// TranslationRequest is a validated client request.
type TranslationRequest struct {
	Text       string
	SourceLang string
	TargetLang string
	Format     string
	Hint       ProviderHint
}

// inboundBody mirrors the JSON accepted on the translate endpoint.
// provider and use_google are kept raw: values of an unexpected type are ignored
// instead of failing the request.
type inboundBody struct {
	Q         string          `json:"q" validate:"required"`
	Source    string          `json:"source" validate:"required"`
	Target    string          `json:"target" validate:"required"`
	Format    string          `json:"format" validate:"omitempty,oneof=text html"`
	Provider  json.RawMessage `json:"provider"`
	UseGoogle json.RawMessage `json:"use_google"`
}

// ValidationError reports a request that must not be forwarded upstream.
type ValidationError struct {
	Reason string
	// Fields maps wire field names to a description of what is wrong with them.
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request: " + e.Reason
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, e.Fields[name])
	}
	return fmt.Sprintf("invalid request: %s (%s)", e.Reason, strings.Join(parts, "; "))
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report wire names (q, source, target) rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseRequest decodes and validates a raw request body.
// The body must be a JSON object carrying non-empty q, source and target.
func ParseRequest(body []byte) (TranslationRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return TranslationRequest{}, &ValidationError{Reason: "empty body"}
	}

	var in inboundBody
	if err := json.Unmarshal(body, &in); err != nil {
		return TranslationRequest{}, &ValidationError{Reason: fmt.Sprintf("decode body: %v", err)}
	}

	if err := validate.Struct(&in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return TranslationRequest{}, newFieldValidationError(fieldErrs)
		}
		return TranslationRequest{}, &ValidationError{Reason: err.Error()}
	}

	req := TranslationRequest{
		Text:       in.Q,
		SourceLang: in.Source,
		TargetLang: in.Target,
		Format:     in.Format,
		Hint:       parseHint(in.Provider, in.UseGoogle),
	}
	if req.Format == "" {
		req.Format = FormatText
	}
	return req, nil
}

func newFieldValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = fmt.Sprintf("%s is required", fe.Field())
		case "oneof":
			fields[fe.Field()] = fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
		default:
			fields[fe.Field()] = fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag())
		}
	}
	return &ValidationError{Reason: "missing or invalid fields", Fields: fields}
}

// parseHint returns HintGoogle when provider is the string "google" or
// use_google is the boolean true.
func parseHint(provider, useGoogle json.RawMessage) ProviderHint {
	var name string
	if len(provider) > 0 && json.Unmarshal(provider, &name) == nil && name == string(ProviderGoogle) {
		return HintGoogle
	}
	var flag bool
	if len(useGoogle) > 0 && json.Unmarshal(useGoogle, &flag) == nil && flag {
		return HintGoogle
	}
	return HintDefault
}
