// Package fetch provides the byte sources the image cache pulls from on a miss.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

var (
	// ErrTooLarge is returned when a response body exceeds the configured limit.
	ErrTooLarge = errors.New("response body too large")
	// ErrUnsupportedScheme is returned for keys no fetcher is registered for.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// StatusError is a non-200 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// HTTPConfig holds configuration for the HTTP fetcher.
type HTTPConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// DefaultHTTPConfig returns a 15 second timeout and a 10 MiB body limit.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:      15 * time.Second,
		UserAgent:    "go-recipecache/1.0",
		MaxBodyBytes: 10 * humanize.MiByte,
	}
}

// HTTPFetcher downloads the body of http and https URLs.
type HTTPFetcher struct {
	client *http.Client
	cfg    HTTPConfig
	logger zerolog.Logger
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client gets a new one using cfg.Timeout.
func NewHTTPFetcher(cfg HTTPConfig, client *http.Client, logger zerolog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFetcher{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "HTTPFetcher").Logger(),
	}
}

// Fetch GETs url and returns the body. Any status other than 200 is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("Non-200 response.")
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.cfg.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if f.cfg.MaxBodyBytes > 0 && int64(len(data)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.IBytes(uint64(f.cfg.MaxBodyBytes)))
	}
	return data, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
