package translate

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultUpstreamTimeout bounds every upstream call.
const DefaultUpstreamTimeout = 10 * time.Second

// Config holds configuration for creating a Dispatcher.
type Config struct {
	// Providers carries the credential state. It decides whether the
	// Google variant is registered at all.
	Providers ProviderConfig
	// LibreURL is the LibreTranslate translate endpoint.
	// Defaults to DefaultLibreTranslateURL if not specified.
	LibreURL string
	// GoogleURL is the Google Translate v2 endpoint.
	// Defaults to DefaultGoogleTranslateURL if not specified.
	GoogleURL string
	// Timeout bounds each upstream call. Defaults to DefaultUpstreamTimeout.
	Timeout time.Duration
	// HTTPClient overrides the client used for upstream calls. Its Timeout
	// is replaced by the Timeout above.
	HTTPClient *http.Client
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// NewDispatcher creates a Dispatcher with one Upstream per available provider.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultUpstreamTimeout
	}

	client := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		client = &copied
	}
	client.Timeout = cfg.Timeout

	libre, err := NewLibreTranslateUpstream(cfg.LibreURL)
	if err != nil {
		return nil, err
	}
	upstreams := map[Provider]Upstream{
		ProviderLibre: libre,
	}

	if cfg.Providers.HasGoogleCredential() {
		google, err := NewGoogleUpstream(cfg.GoogleURL, cfg.Providers.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		upstreams[ProviderGoogle] = google
	}

	cfg.Logger.WithFields(logrus.Fields{
		"libre_url":  libre.endpoint.String(),
		"google":     cfg.Providers.HasGoogleCredential(),
		"timeout_ms": cfg.Timeout.Milliseconds(),
	}).Info("Creating translation dispatcher")

	return newDispatcher(cfg.Providers, upstreams, client, cfg.Logger)
}

func newDispatcher(providers ProviderConfig, upstreams map[Provider]Upstream, client *http.Client, logger *logrus.Logger) (*Dispatcher, error) {
	if _, ok := upstreams[ProviderLibre]; !ok {
		return nil, fmt.Errorf("no upstream registered for %s", ProviderLibre)
	}
	if providers.HasGoogleCredential() {
		if _, ok := upstreams[ProviderGoogle]; !ok {
			return nil, fmt.Errorf("no upstream registered for %s", ProviderGoogle)
		}
	}
	return &Dispatcher{
		providers:  providers,
		upstreams:  upstreams,
		httpClient: client,
		logger:     logger,
	}, nil
}
