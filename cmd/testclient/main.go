package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	addr       string
	sourceLang string
	targetLang string
	textFile   string
	text       string
	format     string
	provider   string
	timeout    time.Duration
}

// requestBody is the gateway's inbound contract.
type requestBody struct {
	Q        string `json:"q"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Format   string `json:"format,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	if err := newCommand(logger).Execute(); err != nil {
		logger.WithError(err).Fatal("Translation failed")
	}
}

func newCommand(logger *logrus.Logger) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "testclient",
		Short:         "Send one translation request to a running tolk gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(opts)
			if err != nil {
				return err
			}
			return translateOnce(cmd.Context(), cmd.OutOrStdout(), logger, opts, text)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "http://localhost:5000", "Gateway base URL")
	flags.StringVar(&opts.sourceLang, "source", "en", "Source language code (e.g., en, fr)")
	flags.StringVar(&opts.targetLang, "target", "fr", "Target language code (e.g., en, fr)")
	flags.StringVar(&opts.textFile, "file", "", "Path to text file to translate")
	flags.StringVar(&opts.text, "text", "", "Text to translate (if file not provided)")
	flags.StringVar(&opts.format, "format", "text", "Payload format: text or html")
	flags.StringVar(&opts.provider, "provider", "", "Set to google to request Google Translate")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "Request timeout")

	return cmd
}

func readText(opts *options) (string, error) {
	var text string
	switch {
	case opts.textFile != "":
		data, err := os.ReadFile(opts.textFile)
		if err != nil {
			return "", fmt.Errorf("read file %s: %w", opts.textFile, err)
		}
		text = string(data)
	case opts.text != "":
		text = opts.text
	default:
		return "", errors.New("either --file or --text must be provided")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text to translate is empty")
	}
	return text, nil
}

func translateOnce(ctx context.Context, out io.Writer, logger *logrus.Logger, opts *options, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(requestBody{
		Q:        text,
		Source:   opts.sourceLang,
		Target:   opts.targetLang,
		Format:   opts.format,
		Provider: opts.provider,
	}); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(opts.addr, "/") + "/translate"
	logger.WithFields(logrus.Fields{
		"url":         url,
		"source_lang": opts.sourceLang,
		"target_lang": opts.targetLang,
		"text_length": len(text),
	}).Info("Sending translation request...")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"request_id":  resp.Header.Get("X-Request-ID"),
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Response received")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Fprintln(out, result.TranslatedText)
	return nil
}
