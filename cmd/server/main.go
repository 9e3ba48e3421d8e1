package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dasmlab/tolk/pkg/config"
	"github.com/dasmlab/tolk/pkg/server"
	"github.com/dasmlab/tolk/pkg/translate"
)

const shutdownTimeout = 30 * time.Second

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var envFile string

	cmd := &cobra.Command{
		Use:   "tolk",
		Short: "Translation gateway for LibreTranslate and Google Translate",
		Long: `tolk accepts translation requests on POST /translate, forwards each one to
LibreTranslate or, when asked and a GOOGLE_API_KEY is configured, to Google
Translate, and answers with a single {"translatedText": ...} contract.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	// No flag for the Google key: it is read from the environment only, so it
	// never shows up in process listings.
	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flags.Int(config.KeyPort, config.DefaultPort, "HTTP server port")
	flags.Int(config.KeyGRPCPort, 0, "gRPC health server port (0 disables it)")
	flags.String(config.KeyLogLevel, config.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, config.DefaultLogFormat, "Log format: text or json")
	flags.String(config.KeyLibreURL, translate.DefaultLibreTranslateURL, "LibreTranslate translate endpoint")
	flags.String(config.KeyGoogleURL, translate.DefaultGoogleTranslateURL, "Google Translate v2 endpoint")
	flags.Duration(config.KeyUpstreamTimeout, translate.DefaultUpstreamTimeout, "Timeout for each upstream call")
	flags.StringSlice(config.KeyCORSOrigins, []string{"*"}, "Allowed CORS origins")

	config.SetDefaults(v)
	cobra.CheckErr(config.BindEnv(v))
	cobra.CheckErr(v.BindPFlags(flags))

	return cmd
}

func run(cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)

	logger.WithFields(logrus.Fields{
		"port":             cfg.Port,
		"grpc_port":        cfg.GRPCPort,
		"libre_url":        cfg.LibreURL,
		"google_url":       cfg.GoogleURL,
		"google_enabled":   cfg.Providers().HasGoogleCredential(),
		"upstream_timeout": cfg.UpstreamTimeout.String(),
		"log_level":        logger.GetLevel().String(),
	}).Info("Starting tolk translation gateway")

	if !cfg.Providers().HasGoogleCredential() {
		logger.Warn("GOOGLE_API_KEY is not set, Google requests will be served by LibreTranslate")
	}

	translateCfg := cfg.Translate()
	translateCfg.Logger = logger
	dispatcher, err := translate.NewDispatcher(translateCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to create dispatcher")
		return err
	}

	httpServer := server.NewHTTPServer(dispatcher, logger, server.Options{
		Port:        cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
	})

	errChan := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to serve http: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	var healthServer *health.Server
	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"port": cfg.GRPCPort,
			}).Error("Failed to listen on port")
			return err
		}
		grpcServer, healthServer = newHealthServer(logger)
		go func() {
			logger.WithFields(logrus.Fields{
				"port": cfg.GRPCPort,
			}).Info("gRPC health server listening")
			if err := grpcServer.Serve(lis); err != nil {
				errChan <- fmt.Errorf("failed to serve grpc: %w", err)
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.WithError(err).Error("Server error")
		return err
	case sig := <-sigChan:
		logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received signal, shutting down gracefully...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if healthServer != nil {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown timeout, connections dropped")
	}
	if grpcServer != nil {
		stopGRPC(ctx, grpcServer, logger)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
