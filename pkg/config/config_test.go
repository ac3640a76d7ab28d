package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/illmade-knight/go-recipecache/pkg/config"
	"github.com/illmade-knight/go-recipecache/pkg/imagecache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPPort)

	ic, err := cfg.ImageCacheConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(64*humanize.MiByte), ic.MaxBytes)
	assert.Equal(t, 40, ic.Quality)
	assert.Equal(t, int64(imagecache.DefaultMaxPixels), ic.MaxPixels)
	assert.Equal(t, 30*time.Second, ic.FetchTimeout)

	_, enabled := cfg.GCSConfig()
	assert.False(t, enabled)
}

func TestParse_File(t *testing.T) {
	const file = `
log_level: debug
http_port: ":9090"
service_name: desserts
recipe_api:
  base_url: http://localhost:1234/api
image_cache:
  max_bytes: 16 MiB
  max_entries: 500
  max_pixels: 4000000
  quality: 55
  fetch_timeout: 5s
http:
  timeout: 2s
  max_body_bytes: 1 MB
gcs:
  endpoint: http://localhost:4443/storage/v1/
  anonymous: true
`
	cfg, err := config.Parse(strings.NewReader(file))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPPort)
	assert.Equal(t, "desserts", cfg.ServiceName)
	assert.Equal(t, "http://localhost:1234/api", cfg.RecipeAPI.BaseURL)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	ic, err := cfg.ImageCacheConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(16*humanize.MiByte), ic.MaxBytes)
	assert.Equal(t, 500, ic.MaxEntries)
	assert.Equal(t, int64(4000000), ic.MaxPixels)
	assert.Equal(t, 55, ic.Quality)
	assert.Equal(t, 5*time.Second, ic.FetchTimeout)

	hc, err := cfg.HTTPConfig()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, hc.Timeout)
	assert.Equal(t, int64(humanize.MByte), hc.MaxBodyBytes)
	assert.Equal(t, "go-recipecache/1.0", hc.UserAgent, "unset keys keep their default")

	gcs, enabled := cfg.GCSConfig()
	require.True(t, enabled)
	assert.True(t, gcs.Anonymous)
	assert.Equal(t, "http://localhost:4443/storage/v1/", gcs.Endpoint)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad size":         "image_cache:\n  max_bytes: lots\n",
		"zero size":        "image_cache:\n  max_bytes: 0 B\n",
		"bad quality":      "image_cache:\n  quality: 101\n",
		"negative entries": "image_cache:\n  max_entries: -1\n",
		"zero pixels":      "image_cache:\n  max_pixels: 0\n",
		"bad timeout":      "http:\n  timeout: soon\n",
		"bad level":        "log_level: shouty\n",
		"bad yaml":         "image_cache: [\n",
	}
	for name, file := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse(strings.NewReader(file))
			assert.Error(t, err)
		})
	}
}
