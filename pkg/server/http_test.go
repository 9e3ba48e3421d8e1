package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/tolk/pkg/translate"
)

// MockTranslator is a mock implementation of Translator.
type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Dispatch(ctx context.Context, req translate.TranslationRequest) (*translate.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*translate.Result), args.Error(1)
}

func newTestServer(t *testing.T, translator Translator) (http.Handler, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	return NewHTTPServer(translator, logger, Options{Port: 5000}).Handler(), hook
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleTranslateValidation(t *testing.T) {
	bodies := map[string]string{
		"empty":          ``,
		"not json":       `hello`,
		"array":          `[]`,
		"missing q":      `{"source":"en","target":"fr"}`,
		"missing source": `{"q":"hi","target":"fr"}`,
		"missing target": `{"q":"hi","source":"en"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			translator := new(MockTranslator)
			h, _ := newTestServer(t, translator)

			w := doRequest(h, http.MethodPost, "/translate", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
			translator.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleTranslateOversizedBody(t *testing.T) {
	translator := new(MockTranslator)
	h, _ := newTestServer(t, translator)

	body := `{"q":"` + strings.Repeat("a", maxRequestBodyBytes) + `","source":"en","target":"fr"}`
	w := doRequest(h, http.MethodPost, "/translate", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	translator.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestHandleTranslateSuccess(t *testing.T) {
	for _, path := range []string{"/translate", "/api/translate"} {
		t.Run(path, func(t *testing.T) {
			translator := new(MockTranslator)
			translator.On("Dispatch", mock.Anything, translate.TranslationRequest{
				Text:       "hello",
				SourceLang: "en",
				TargetLang: "fr",
				Format:     translate.FormatText,
				Hint:       translate.HintGoogle,
			}).Return(&translate.Result{
				Provider:   translate.ProviderGoogle,
				StatusCode: http.StatusOK,
				Body:       json.RawMessage(`{"translatedText":"bonjour"}`),
			}, nil)
			h, _ := newTestServer(t, translator)

			w := doRequest(h, http.MethodPost, path, `{"q":"hello","source":"en","target":"fr","use_google":true}`)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, `{"translatedText":"bonjour"}`, w.Body.String())
			translator.AssertExpectations(t)
		})
	}
}

func TestHandleTranslateUpstreamStatusPassedThrough(t *testing.T) {
	translator := new(MockTranslator)
	translator.On("Dispatch", mock.Anything, mock.Anything).Return(&translate.Result{
		Provider:   translate.ProviderLibre,
		StatusCode: http.StatusTooManyRequests,
		Body:       json.RawMessage(`{"error":"Slowdown"}`),
	}, nil)
	h, _ := newTestServer(t, translator)

	w := doRequest(h, http.MethodPost, "/translate", `{"q":"hello","source":"en","target":"fr"}`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, `{"error":"Slowdown"}`, w.Body.String())
}

func TestHandleTranslateFailures(t *testing.T) {
	tests := []struct {
		name    string
		failure *translate.Failure
		want    string
	}{
		{
			name: "transport",
			failure: &translate.Failure{
				Provider: translate.ProviderLibre,
				Kind:     translate.KindTransport,
				Message:  "upstream request failed",
				Detail:   "dial tcp: connection refused",
			},
			want: `{"error":"upstream request failed","detail":"dial tcp: connection refused"}`,
		},
		{
			name: "invalid response",
			failure: &translate.Failure{
				Provider: translate.ProviderGoogle,
				Kind:     translate.KindInvalidResponse,
				Message:  "invalid google response",
				Status:   http.StatusForbidden,
			},
			want: `{"error":"invalid google response","status":403}`,
		},
		{
			name: "unexpected shape",
			failure: &translate.Failure{
				Provider: translate.ProviderGoogle,
				Kind:     translate.KindUnexpectedShape,
				Message:  "unexpected google response",
				Status:   http.StatusOK,
				Raw:      json.RawMessage(`{"data":{}}`),
			},
			want: `{"error":"unexpected google response","status":200,"raw":{"data":{}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translator := new(MockTranslator)
			translator.On("Dispatch", mock.Anything, mock.Anything).Return(nil, tt.failure)
			h, _ := newTestServer(t, translator)

			w := doRequest(h, http.MethodPost, "/translate", `{"q":"hello","source":"en","target":"fr"}`)

			assert.Equal(t, http.StatusBadGateway, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestHandleTranslateUnclassifiedError(t *testing.T) {
	translator := new(MockTranslator)
	translator.On("Dispatch", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	h, _ := newTestServer(t, translator)

	w := doRequest(h, http.MethodPost, "/translate", `{"q":"hello","source":"en","target":"fr"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"upstream request failed","detail":"boom"}`, w.Body.String())
}

func TestRouting(t *testing.T) {
	h, _ := newTestServer(t, new(MockTranslator))

	t.Run("method not allowed", func(t *testing.T) {
		w := doRequest(h, http.MethodGet, "/translate", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.JSONEq(t, `{"error":"method not allowed"}`, w.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		w := doRequest(h, http.MethodGet, "/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
	})

	t.Run("health", func(t *testing.T) {
		w := doRequest(h, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	})

	t.Run("metrics", func(t *testing.T) {
		w := doRequest(h, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "tolk_validation_failures_total")
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/translate", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestID(t *testing.T) {
	translator := new(MockTranslator)
	h, hook := newTestServer(t, translator)

	t.Run("generated", func(t *testing.T) {
		w := doRequest(h, http.MethodGet, "/health", "")
		assert.Len(t, w.Header().Get(requestIDHeader), 36)
	})

	t.Run("reused and logged", func(t *testing.T) {
		hook.Reset()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.InfoLevel, entry.Level)
		assert.Equal(t, "abc-123", entry.Data["request_id"])
		assert.Equal(t, http.StatusOK, entry.Data["status_code"])
	})
}

// End to end through the real dispatcher against fake upstreams.
func TestTranslateEndToEnd(t *testing.T) {
	libre := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translatedText":"bonjour"}`))
	}))
	defer libre.Close()

	googleKeys := make(chan string, 1)
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		googleKeys <- r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer google.Close()

	logger, _ := test.NewNullLogger()
	newHandler := func(key string) http.Handler {
		d, err := translate.NewDispatcher(translate.Config{
			Providers: translate.ProviderConfig{GoogleAPIKey: key},
			LibreURL:  libre.URL,
			GoogleURL: google.URL,
			Timeout:   time.Second,
			Logger:    logger,
		})
		require.NoError(t, err)
		return NewHTTPServer(d, logger, Options{}).Handler()
	}

	t.Run("libre pass-through", func(t *testing.T) {
		w := doRequest(newHandler(""), http.MethodPost, "/translate", `{"q":"hello","source":"en","target":"fr"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"translatedText":"bonjour"}`, w.Body.String())
	})

	t.Run("google requested without key", func(t *testing.T) {
		w := doRequest(newHandler(""), http.MethodPost, "/translate", `{"q":"hello","source":"en","target":"fr","provider":"google"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"translatedText":"bonjour"}`, w.Body.String())
	})

	t.Run("google shape failure", func(t *testing.T) {
		w := doRequest(newHandler("k1"), http.MethodPost, "/translate", `{"q":"hello","source":"en","target":"fr","use_google":true}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error":"unexpected google response","status":200,"raw":{"data":{}}}`, w.Body.String())
		assert.Equal(t, "k1", <-googleKeys)
	})
}
