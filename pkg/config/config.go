// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/illmade-knight/go-recipecache/pkg/fetch"
	"github.com/illmade-knight/go-recipecache/pkg/imagecache"
	"github.com/illmade-knight/go-recipecache/pkg/microservice"
	"github.com/illmade-knight/go-recipecache/pkg/recipe"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	microservice.BaseConfig `yaml:",inline"`

	RecipeAPI  RecipeAPI  `yaml:"recipe_api"`
	ImageCache ImageCache `yaml:"image_cache"`
	HTTP       HTTP       `yaml:"http"`
	GCS        *GCS       `yaml:"gcs"`
}

// RecipeAPI locates the TheMealDB endpoint.
type RecipeAPI struct {
	BaseURL string `yaml:"base_url"`
}

// ImageCache sizes the image store. MaxBytes is a humanized size ("64 MiB").
// MaxPixels bounds the declared width*height of an image before decoding.
type ImageCache struct {
	MaxBytes     string `yaml:"max_bytes"`
	MaxEntries   int    `yaml:"max_entries"`
	MaxPixels    int64  `yaml:"max_pixels"`
	Quality      int    `yaml:"quality"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

// HTTP configures the outbound HTTP fetchers.
type HTTP struct {
	Timeout      string `yaml:"timeout"`
	UserAgent    string `yaml:"user_agent"`
	MaxBodyBytes string `yaml:"max_body_bytes"`
}

// GCS enables gs:// image keys when present.
type GCS struct {
	Endpoint        string `yaml:"endpoint"`
	CredentialsFile string `yaml:"credentials_file"`
	Anonymous       bool   `yaml:"anonymous"`
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		BaseConfig: microservice.BaseConfig{
			LogLevel:    "info",
			HTTPPort:    ":8080",
			ServiceName: "recipecache",
		},
		RecipeAPI: RecipeAPI{BaseURL: recipe.DefaultBaseURL},
		ImageCache: ImageCache{
			MaxBytes:     "64 MiB",
			MaxPixels:    imagecache.DefaultMaxPixels,
			Quality:      imagecache.DefaultQuality,
			FetchTimeout: "30s",
		},
		HTTP: HTTP{
			Timeout:      "15s",
			UserAgent:    "go-recipecache/1.0",
			MaxBodyBytes: "10 MiB",
		},
	}
}

// Parse decodes YAML from r on top of Default and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if _, err := cfg.ImageCacheConfig(); err != nil {
		return nil, err
	}
	if _, err := cfg.HTTPConfig(); err != nil {
		return nil, err
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Level returns the zerolog level named by LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// ImageCacheConfig converts the image_cache section.
func (c *Config) ImageCacheConfig() (imagecache.Config, error) {
	maxBytes, err := humanize.ParseBytes(c.ImageCache.MaxBytes)
	if err != nil {
		return imagecache.Config{}, fmt.Errorf("failed to parse image_cache.max_bytes %q: %w", c.ImageCache.MaxBytes, err)
	}
	if maxBytes == 0 {
		return imagecache.Config{}, errors.New("image_cache.max_bytes must be greater than 0")
	}
	if c.ImageCache.MaxEntries < 0 {
		return imagecache.Config{}, fmt.Errorf("image_cache.max_entries cannot be negative, got %d", c.ImageCache.MaxEntries)
	}
	if c.ImageCache.MaxPixels <= 0 {
		return imagecache.Config{}, fmt.Errorf("image_cache.max_pixels must be greater than 0, got %d", c.ImageCache.MaxPixels)
	}
	timeout, err := parseDuration(c.ImageCache.FetchTimeout)
	if err != nil {
		return imagecache.Config{}, fmt.Errorf("failed to parse image_cache.fetch_timeout: %w", err)
	}
	if c.ImageCache.Quality < 1 || c.ImageCache.Quality > 100 {
		return imagecache.Config{}, fmt.Errorf("image_cache.quality must be between 1 and 100, got %d", c.ImageCache.Quality)
	}
	return imagecache.Config{
		MaxBytes:     int64(maxBytes),
		MaxEntries:   c.ImageCache.MaxEntries,
		MaxPixels:    c.ImageCache.MaxPixels,
		Quality:      c.ImageCache.Quality,
		FetchTimeout: timeout,
	}, nil
}

// HTTPConfig converts the http section.
func (c *Config) HTTPConfig() (fetch.HTTPConfig, error) {
	timeout, err := parseDuration(c.HTTP.Timeout)
	if err != nil {
		return fetch.HTTPConfig{}, fmt.Errorf("failed to parse http.timeout: %w", err)
	}
	var maxBody uint64
	if c.HTTP.MaxBodyBytes != "" {
		maxBody, err = humanize.ParseBytes(c.HTTP.MaxBodyBytes)
		if err != nil {
			return fetch.HTTPConfig{}, fmt.Errorf("failed to parse http.max_body_bytes %q: %w", c.HTTP.MaxBodyBytes, err)
		}
	}
	return fetch.HTTPConfig{
		Timeout:      timeout,
		UserAgent:    c.HTTP.UserAgent,
		MaxBodyBytes: int64(maxBody),
	}, nil
}

// GCSConfig converts the gcs section. It reports false when gs:// keys are disabled.
func (c *Config) GCSConfig() (fetch.GCSConfig, bool) {
	if c.GCS == nil {
		return fetch.GCSConfig{}, false
	}
	return fetch.GCSConfig{
		Endpoint:        c.GCS.Endpoint,
		CredentialsFile: c.GCS.CredentialsFile,
		Anonymous:       c.GCS.Anonymous,
	}, true
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
