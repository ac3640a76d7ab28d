// Package imagecache serves remote images by URL from a bounded in-memory store,
// running at most one fetch per URL no matter how many callers ask for it.
package imagecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-recipecache/pkg/cache"
	"github.com/rs/zerolog"
)

// Config holds the configuration for an ImageCache.
type Config struct {
	// MaxBytes bounds the total size of stored images. Must be > 0.
	MaxBytes int64
	// MaxEntries optionally bounds the number of stored images.
	MaxEntries int
	// MaxPixels bounds width*height of an image before its pixels are
	// decoded. Must be > 0.
	MaxPixels int64
	// Quality is the JPEG quality used for recompression (1-100).
	Quality int
	// FetchTimeout bounds a single fetch pipeline. Zero means no timeout.
	FetchTimeout time.Duration
}

// DefaultMaxPixels admits images up to 25 megapixels (about 100 MiB decoded).
const DefaultMaxPixels = 25_000_000

// DefaultConfig returns a 64 MiB store recompressing at DefaultQuality.
func DefaultConfig() Config {
	return Config{
		MaxBytes:     64 * humanize.MiByte,
		MaxPixels:    DefaultMaxPixels,
		Quality:      DefaultQuality,
		FetchTimeout: 30 * time.Second,
	}
}

// Result is the terminal outcome of a request. Image is nil when the image is
// unavailable, in which case Err explains why.
type Result struct {
	Image *Image
	Err   error
}

// Available reports whether the result carries an image.
func (r Result) Available() bool {
	return r.Image != nil
}

// inflightRequest tracks a started fetch and the callers waiting on it.
type inflightRequest struct {
	id      string
	started time.Time
	waiters []chan Result
}

// ImageCache maps image URLs to decoded, recompressed images. A miss launches
// a background fetch pipeline; concurrent requests for the same key share it.
// Create one per process with New and pass it to the components that need it.
type ImageCache struct {
	cfg     Config
	fetcher cache.Fetcher[string, []byte]
	codec   Codec
	logger  zerolog.Logger
	stats   *counters

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards store lookups together with the in-flight table so that the
	// hit check, in-flight check and waiter registration are one step.
	mu       sync.Mutex
	store    *cache.CostLRU[string, *Image]
	inflight map[string]*inflightRequest
	closed   bool
}

// New creates an ImageCache.
// - fetcher: retrieves the raw bytes for a key. Must not be nil.
// - codec: decodes and recompresses images. Nil selects JPEGCodec.
func New(
	cfg Config,
	fetcher cache.Fetcher[string, []byte],
	codec Codec,
	logger zerolog.Logger,
) (*ImageCache, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", cfg.Quality)
	}
	if cfg.MaxPixels <= 0 {
		return nil, fmt.Errorf("max pixels must be greater than 0, got %d", cfg.MaxPixels)
	}
	if codec == nil {
		codec = JPEGCodec{}
	}

	c := &ImageCache{
		cfg:      cfg,
		fetcher:  fetcher,
		codec:    codec,
		logger:   logger.With().Str("component", "ImageCache").Logger(),
		stats:    newCounters(),
		inflight: make(map[string]*inflightRequest),
	}

	store, err := cache.NewCostLRU[string, *Image](
		cache.CostLRUConfig{MaxCost: cfg.MaxBytes, MaxEntries: cfg.MaxEntries},
		(*Image).Cost,
		c.onEvict,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image store: %w", err)
	}
	c.store = store
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.logger.Info().
		Str("max_bytes", humanize.IBytes(uint64(cfg.MaxBytes))).
		Int("max_entries", cfg.MaxEntries).
		Int64("max_pixels", cfg.MaxPixels).
		Int("quality", cfg.Quality).
		Msg("Image cache initialized.")
	return c, nil
}

// Request returns a channel that receives exactly one Result for key.
// A hit is delivered before Request returns. On a miss the caller joins the
// fetch already running for key, or starts one. Request never blocks on I/O.
func (c *ImageCache) Request(key string) <-chan Result {
	ch := make(chan Result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ch <- Result{Err: fmt.Errorf("%w: %w", ErrUnavailable, ErrClosed)}
		return ch
	}
	if img, ok := c.store.Get(key); ok {
		c.mu.Unlock()
		c.stats.hits.Inc()
		ch <- Result{Image: img}
		return ch
	}
	if req, ok := c.inflight[key]; ok {
		req.waiters = append(req.waiters, ch)
		c.mu.Unlock()
		c.stats.misses.Inc()
		c.stats.coalesced.Inc()
		return ch
	}
	req := &inflightRequest{
		id:      uuid.NewString(),
		started: time.Now(),
		waiters: []chan Result{ch},
	}
	c.inflight[key] = req
	c.wg.Add(1)
	c.mu.Unlock()

	c.stats.misses.Inc()
	go c.run(key, req)
	return ch
}

// Load waits for the result of key. The returned error wraps ErrUnavailable
// when the image could not be produced. Abandoning ctx stops the wait only;
// the shared fetch keeps running for the other waiters.
func (c *ImageCache) Load(ctx context.Context, key string) (*Image, error) {
	select {
	case res := <-c.Request(key):
		return res.Image, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the image for key, or false if it is unavailable.
func (c *ImageCache) Get(ctx context.Context, key string) (*Image, bool) {
	img, err := c.Load(ctx, key)
	return img, err == nil && img != nil
}

// Contains reports whether key is stored, without touching its recency.
func (c *ImageCache) Contains(key string) bool {
	_, ok := c.store.Peek(key)
	return ok
}

// Remove drops key from the store. An in-flight fetch for key is unaffected.
func (c *ImageCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Remove(key)
}

// Purge drops every stored image.
func (c *ImageCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Purge()
}

// Stats returns a snapshot of the cache counters and store size.
func (c *ImageCache) Stats() Stats {
	c.mu.Lock()
	inFlight := len(c.inflight)
	c.mu.Unlock()
	return Stats{
		Hits:      c.stats.hits.Value(),
		Misses:    c.stats.misses.Value(),
		Coalesced: c.stats.coalesced.Value(),
		Fetches:   c.stats.fetches.Value(),
		Failures:  c.stats.failures.Value(),
		Evictions: c.stats.evictions.Value(),
		Entries:   c.store.Len(),
		Bytes:     c.store.Cost(),
		InFlight:  inFlight,
	}
}

// Close rejects new requests, cancels running fetches, waits for their
// waiters to be resolved and closes the fetcher.
func (c *ImageCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.logger.Info().Msg("Closing image cache...")
	c.cancel()
	c.wg.Wait()

	if err := c.fetcher.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Error closing fetcher.")
		return fmt.Errorf("error closing fetcher: %w", err)
	}
	return nil
}

// run executes the fetch pipeline for key and resolves every waiter of req.
func (c *ImageCache) run(key string, req *inflightRequest) {
	defer c.wg.Done()

	logger := c.logger.With().Str("key", key).Str("fetch_id", req.id).Logger()
	c.stats.fetches.Inc()

	ctx, cancel := c.pipelineContext()
	img, err := c.load(ctx, key, logger)
	cancel()

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil && !c.store.Add(key, img) {
		logger.Warn().
			Str("size", humanize.IBytes(uint64(img.Cost()))).
			Msg("Image exceeds the cache budget; serving without storing.")
	}
	waiters := req.waiters
	c.mu.Unlock()

	res := Result{Image: img}
	if err != nil {
		c.stats.failures.Inc()
		res = Result{Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
		logger.Warn().Err(err).Int("waiters", len(waiters)).Msg("Image unavailable.")
	} else {
		logger.Debug().
			Int("waiters", len(waiters)).
			Dur("elapsed", time.Since(req.started)).
			Str("size", humanize.IBytes(uint64(img.Cost()))).
			Msg("Image fetched and cached.")
	}

	for _, w := range waiters {
		w <- res
	}
}

func (c *ImageCache) pipelineContext() (context.Context, context.CancelFunc) {
	if c.cfg.FetchTimeout > 0 {
		return context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
	}
	return context.WithCancel(c.ctx)
}

// load fetches, decodes and recompresses the image for key.
func (c *ImageCache) load(ctx context.Context, key string, logger zerolog.Logger) (*Image, error) {
	data, err := c.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, &FetchError{Key: key, Err: err}
	}
	if len(data) == 0 {
		return nil, &DecodeError{Key: key, Err: errors.New("empty body")}
	}

	// Dimensions are checked before decoding; a small body can declare a
	// canvas of gigabytes.
	header, _, err := c.codec.DecodeConfig(data)
	if err != nil {
		return nil, &DecodeError{Key: key, Err: err}
	}
	if pixels := int64(header.Width) * int64(header.Height); pixels > c.cfg.MaxPixels {
		return nil, &DecodeError{
			Key: key,
			Err: fmt.Errorf("%w: %dx%d is over %d pixels", ErrTooManyPixels, header.Width, header.Height, c.cfg.MaxPixels),
		}
	}

	decoded, format, err := c.codec.Decode(data)
	if err != nil {
		return nil, &DecodeError{Key: key, Err: err}
	}

	bounds := decoded.Bounds()
	img := &Image{
		Key:          key,
		SourceFormat: format,
		SourceSize:   len(data),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
	}

	compressed, err := c.codec.Recompress(decoded, c.cfg.Quality)
	if err != nil {
		logger.Warn().Err(err).Msg("Recompression failed; keeping the original encoding.")
		img.Data = data
		img.Format = format
		return img, nil
	}
	img.Data = compressed
	img.Format = "jpeg"
	img.Recompressed = true
	return img, nil
}

// onEvict runs under the store lock.
func (c *ImageCache) onEvict(key string, img *Image) {
	c.stats.evictions.Inc()
	c.logger.Debug().Str("key", key).Int64("size", img.Cost()).Msg("Image evicted.")
}
