package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dasmlab/tolk/pkg/translate"
)

// Keys shared by flags, environment variables and viper.
const (
	KeyPort            = "port"
	KeyGRPCPort        = "grpc-port"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyLibreURL        = "libre-url"
	KeyGoogleURL       = "google-url"
	KeyGoogleAPIKey    = "google-api-key"
	KeyUpstreamTimeout = "upstream-timeout"
	KeyCORSOrigins     = "cors-origins"
)

// Defaults.
const (
	DefaultPort      = 5000
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// envBindings maps viper keys to the environment variables that feed them.
var envBindings = map[string]string{
	KeyPort:            "PORT",
	KeyGRPCPort:        "GRPC_PORT",
	KeyLogLevel:        "LOG_LEVEL",
	KeyLogFormat:       "LOG_FORMAT",
	KeyLibreURL:        "LIBRE_URL",
	KeyGoogleURL:       "GOOGLE_URL",
	KeyGoogleAPIKey:    "GOOGLE_API_KEY",
	KeyUpstreamTimeout: "UPSTREAM_TIMEOUT",
	KeyCORSOrigins:     "CORS_ORIGINS",
}

// Config is the gateway configuration. It is read once at startup.
type Config struct {
	Port            int
	GRPCPort        int
	LogLevel        string
	LogFormat       string
	LibreURL        string
	GoogleURL       string
	GoogleAPIKey    string
	UpstreamTimeout time.Duration
	CORSOrigins     []string
}

// LoadDotEnv loads variables from an optional .env file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyGRPCPort, 0)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyLibreURL, translate.DefaultLibreTranslateURL)
	v.SetDefault(KeyGoogleURL, translate.DefaultGoogleTranslateURL)
	v.SetDefault(KeyUpstreamTimeout, translate.DefaultUpstreamTimeout)
	v.SetDefault(KeyCORSOrigins, []string{"*"})
}

// BindEnv binds every key to its environment variable.
func BindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// Load reads and validates the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:            v.GetInt(KeyPort),
		GRPCPort:        v.GetInt(KeyGRPCPort),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		LibreURL:        strings.TrimSpace(v.GetString(KeyLibreURL)),
		GoogleURL:       strings.TrimSpace(v.GetString(KeyGoogleURL)),
		GoogleAPIKey:    strings.TrimSpace(v.GetString(KeyGoogleAPIKey)),
		UpstreamTimeout: v.GetDuration(KeyUpstreamTimeout),
		CORSOrigins:     splitList(v.GetStringSlice(KeyCORSOrigins)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ports, timeout, URLs and the log format.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: %s must be between 1 and 65535, got %d", KeyPort, c.Port)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("config: %s must be between 0 and 65535, got %d", KeyGRPCPort, c.GRPCPort)
	}
	if c.GRPCPort != 0 && c.GRPCPort == c.Port {
		return fmt.Errorf("config: %s and %s must differ", KeyPort, KeyGRPCPort)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("config: %s must be positive, got %s", KeyUpstreamTimeout, c.UpstreamTimeout)
	}
	if err := validateURL(KeyLibreURL, c.LibreURL); err != nil {
		return err
	}
	if err := validateURL(KeyGoogleURL, c.GoogleURL); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: %s must be text or json, got %q", KeyLogFormat, c.LogFormat)
	}
	return nil
}

// Providers returns the immutable provider configuration for the dispatcher.
func (c *Config) Providers() translate.ProviderConfig {
	return translate.ProviderConfig{GoogleAPIKey: c.GoogleAPIKey}
}

// Translate returns the dispatcher configuration minus the logger.
func (c *Config) Translate() translate.Config {
	return translate.Config{
		Providers: c.Providers(),
		LibreURL:  c.LibreURL,
		GoogleURL: c.GoogleURL,
		Timeout:   c.UpstreamTimeout,
	}
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: %s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}

// splitList flattens comma separated entries, since values from the
// environment arrive as a single string.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
