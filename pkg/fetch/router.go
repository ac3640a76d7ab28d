package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/illmade-knight/go-recipecache/pkg/cache"
)

// SchemeRouter dispatches each key to the fetcher registered for its URL scheme.
type SchemeRouter struct {
	fetchers map[string]cache.Fetcher[string, []byte]
	handled  []cache.Fetcher[string, []byte]
}

// NewSchemeRouter creates an empty router.
func NewSchemeRouter() *SchemeRouter {
	return &SchemeRouter{fetchers: make(map[string]cache.Fetcher[string, []byte])}
}

// Handle registers f for the given schemes, replacing any previous registration.
func (r *SchemeRouter) Handle(f cache.Fetcher[string, []byte], schemes ...string) *SchemeRouter {
	for _, s := range schemes {
		r.fetchers[strings.ToLower(s)] = f
	}
	r.handled = append(r.handled, f)
	return r
}

// Fetch parses key and delegates to the fetcher for its scheme.
func (r *SchemeRouter) Fetch(ctx context.Context, key string) ([]byte, error) {
	u, err := url.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("invalid key %q: %w", key, err)
	}
	f, ok := r.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.Fetch(ctx, key)
}

// Close closes the fetcher of every Handle call.
func (r *SchemeRouter) Close() error {
	var errs []error
	for _, f := range r.handled {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
