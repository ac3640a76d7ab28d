package microservice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/illmade-knight/go-recipecache/pkg/cache"
	"github.com/illmade-knight/go-recipecache/pkg/imagecache"
	"github.com/illmade-knight/go-recipecache/pkg/microservice"
	"github.com/illmade-knight/go-recipecache/pkg/recipe"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRecipeSource is a test double for the recipe client.
type mockRecipeSource struct{}

func (mockRecipeSource) ListDesserts(context.Context) ([]recipe.Summary, error) {
	return []recipe.Summary{{ID: "53049", Name: "Apam balik"}}, nil
}

func (mockRecipeSource) Lookup(_ context.Context, id string) (*recipe.Recipe, error) {
	switch id {
	case "53049":
		return &recipe.Recipe{ID: id, Name: "Apam balik", Lines: []string{"• 200ml milk"}}, nil
	case "upstream":
		return nil, recipe.ErrInvalidResponse
	default:
		return nil, recipe.ErrInvalidData
	}
}

func newTestService(t *testing.T) (*microservice.RecipeService, *atomic.Int32) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	pngData := buf.Bytes()

	var fetches atomic.Int32
	fetcher := cache.FetcherFunc[string, []byte](func(_ context.Context, key string) ([]byte, error) {
		fetches.Add(1)
		if key == "https://x/broken.jpg" {
			return nil, errors.New("404")
		}
		return pngData, nil
	})
	images, err := imagecache.New(imagecache.DefaultConfig(), fetcher, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = images.Close() })

	svc, err := microservice.NewRecipeService(":0", mockRecipeSource{}, images, zerolog.Nop())
	require.NoError(t, err)
	return svc, &fetches
}

func serve(svc *microservice.RecipeService, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	svc.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRecipeService_Recipes(t *testing.T) {
	svc, _ := newTestService(t)

	rec := serve(svc, "/recipes")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []recipe.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "Apam balik", list[0].Name)

	rec = serve(svc, "/recipes/53049")
	require.Equal(t, http.StatusOK, rec.Code)
	var r recipe.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, []string{"• 200ml milk"}, r.Lines)

	assert.Equal(t, http.StatusNotFound, serve(svc, "/recipes/1").Code)
	assert.Equal(t, http.StatusBadGateway, serve(svc, "/recipes/upstream").Code)
}

func TestRecipeService_Images(t *testing.T) {
	svc, fetches := newTestService(t)
	target := "/images?url=" + url.QueryEscape("https://x/img.jpg")

	t.Run("Serves and caches an image", func(t *testing.T) {
		rec := serve(svc, target)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Body.Bytes())

		rec = serve(svc, target)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int32(1), fetches.Load(), "the second request should be a cache hit")
	})

	t.Run("Unavailable image is a bad gateway", func(t *testing.T) {
		rec := serve(svc, "/images?url="+url.QueryEscape("https://x/broken.jpg"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Invalid url is rejected before the cache", func(t *testing.T) {
		before := fetches.Load()
		for _, bad := range []string{"", "relative/path.jpg", "ftp://x/a.jpg", "https://"} {
			rec := serve(svc, "/images?url="+url.QueryEscape(bad))
			assert.Equal(t, http.StatusBadRequest, rec.Code, "url %q", bad)
		}
		assert.Equal(t, before, fetches.Load())
	})

	t.Run("Stats reflect the traffic", func(t *testing.T) {
		rec := serve(svc, "/stats")
		require.Equal(t, http.StatusOK, rec.Code)
		var stats imagecache.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Failures)
		assert.Equal(t, 1, stats.Entries)
	})
}

func TestRecipeService_StartAndShutdown(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Start(context.Background()))

	resp, err := http.Get("http://localhost" + svc.GetHTTPPort() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
}
