package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/tolk/pkg/translate"
)

// maxRequestBodyBytes caps the inbound translate body.
const maxRequestBodyBytes = 1 << 20

// Translator dispatches a validated request to an upstream.
type Translator interface {
	Dispatch(ctx context.Context, req translate.TranslationRequest) (*translate.Result, error)
}

// Options configures the HTTP server.
type Options struct {
	Port        int
	CORSOrigins []string
}

// HTTPServer exposes the translation endpoint, health check and metrics.
type HTTPServer struct {
	translator Translator
	logger     *logrus.Logger
	port       int
	handler    http.Handler
	server     *http.Server
}

// NewHTTPServer creates a new HTTP server for translate requests.
func NewHTTPServer(translator Translator, logger *logrus.Logger, opts Options) *HTTPServer {
	if logger == nil {
		logger = logrus.New()
	}

	s := &HTTPServer{
		translator: translator,
		logger:     logger,
		port:       opts.Port,
	}
	s.handler = s.routes(opts.CORSOrigins)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, mostly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) routes(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// /api/translate matches the serverless deployment path used by browser clients.
	r.Post("/translate", s.handleTranslate)
	r.Post("/api/translate", s.handleTranslate)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port": s.port,
	}).Info("Starting HTTP server for translation requests")

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleTranslate validates, dispatches and writes the normalized reply.
func (s *HTTPServer) handleTranslate(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithFields(logrus.Fields{
		"request_id": requestIDFromContext(r.Context()),
	})

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		translate.RecordValidationFailure()
		log.WithError(err).Debug("Failed to read request body")
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req, err := translate.ParseRequest(body)
	if err != nil {
		translate.RecordValidationFailure()
		log.WithError(err).Debug("Rejected translation request")
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := s.translator.Dispatch(r.Context(), req)
	if err != nil {
		var failure *translate.Failure
		if !errors.As(err, &failure) {
			log.WithError(err).Error("Dispatcher returned an unclassified error")
			writeJSON(w, http.StatusBadGateway, failureResponse{
				Error:  "upstream request failed",
				Detail: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusBadGateway, newFailureResponse(failure))
		return
	}

	writeRawJSON(w, result.StatusCode, result.Body)
}

// handleHealth provides a health check endpoint.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
