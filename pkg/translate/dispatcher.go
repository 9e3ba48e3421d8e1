package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxUpstreamBodyBytes caps how much of an upstream reply is read.
const MaxUpstreamBodyBytes = 10 << 20

// Dispatcher selects an upstream for each request, performs a single call
// and normalizes the reply. It is safe for concurrent use.
type Dispatcher struct {
	providers  ProviderConfig
	upstreams  map[Provider]Upstream
	httpClient *http.Client
	logger     *logrus.Logger
}

// Dispatch forwards req to exactly one upstream. On failure the returned
// error is a *Failure; a nil error always comes with a non-nil Result.
func (d *Dispatcher) Dispatch(ctx context.Context, req TranslationRequest) (*Result, error) {
	provider := Select(req.Hint, d.providers)
	log := d.logger.WithFields(logrus.Fields{
		"provider":    provider,
		"hint":        req.Hint.String(),
		"source_lang": req.SourceLang,
		"target_lang": req.TargetLang,
		"format":      req.Format,
		"text_length": len(req.Text),
	})
	if req.Hint == HintGoogle && provider != ProviderGoogle {
		recordFallback()
		log.Debug("Google requested but not configured, using LibreTranslate")
	}

	upstream := d.upstreams[provider]

	startTime := time.Now()
	result, err := d.roundTrip(ctx, upstream, req, log)
	duration := time.Since(startTime)

	outcome := outcomeSuccess
	var failure *Failure
	if errors.As(err, &failure) {
		outcome = string(failure.Kind)
	}
	recordDispatch(provider, outcome, duration, len(req.Text))

	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"outcome":     outcome,
			"duration_ms": duration.Milliseconds(),
		}).Warn("Translation request failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"status_code": result.StatusCode,
		"duration_ms": duration.Milliseconds(),
	}).Info("Translation completed")
	return result, nil
}

func (d *Dispatcher) roundTrip(ctx context.Context, upstream Upstream, req TranslationRequest, log *logrus.Entry) (*Result, error) {
	provider := upstream.Provider()

	httpReq, err := upstream.NewRequest(ctx, req)
	if err != nil {
		return nil, newTransportFailure(provider, err)
	}

	log.WithFields(logrus.Fields{
		"url": redactURL(httpReq.URL),
	}).Debug("Sending upstream request")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			// url.Error embeds the request URL, which may carry the API key.
			redacted := *urlErr
			redacted.URL = redactURL(httpReq.URL)
			err = &redacted
		}
		return nil, newTransportFailure(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxUpstreamBodyBytes+1))
	if err != nil {
		return nil, newTransportFailure(provider, fmt.Errorf("read response: %w", err))
	}
	if len(body) > MaxUpstreamBodyBytes {
		f := newFailure(provider, KindInvalidResponse)
		f.Status = resp.StatusCode
		return nil, f
	}

	log.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"body_bytes":  len(body),
	}).Debug("Upstream request completed")

	return upstream.Normalize(resp.StatusCode, body)
}
