// Package cache provides the generic storage building blocks used by the image cache.
package cache

import (
	"context"
	"io"
)

// Fetcher is a source of truth that a cache pulls from on a miss.
type Fetcher[K any, V any] interface {
	// Fetch retrieves the value for key from the source.
	Fetch(ctx context.Context, key K) (V, error)
	// Closer releases any connections held by the source.
	io.Closer
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc[K any, V any] func(ctx context.Context, key K) (V, error)

// Fetch calls f(ctx, key).
func (f FetcherFunc[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}

// Close is a no-op.
func (f FetcherFunc[K, V]) Close() error {
	return nil
}
