package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// GCSFetcher reads gs://bucket/object keys from Google Cloud Storage.
type GCSFetcher struct {
	client       GCSClient
	maxBodyBytes int64
	logger       zerolog.Logger
}

// NewGCSFetcher creates a GCSFetcher. maxBodyBytes <= 0 disables the size limit.
func NewGCSFetcher(client GCSClient, maxBodyBytes int64, logger zerolog.Logger) (*GCSFetcher, error) {
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	return &GCSFetcher{
		client:       client,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With().Str("component", "GCSFetcher").Logger(),
	}, nil
}

// Fetch reads the object named by key.
func (f *GCSFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	bucket, object, err := parseGCSKey(key)
	if err != nil {
		return nil, err
	}

	r, err := f.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			f.logger.Debug().Str("key", key).Msg("Object not found in GCS.")
		}
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	defer r.Close()

	var body io.Reader = r
	if f.maxBodyBytes > 0 {
		body = io.LimitReader(r, f.maxBodyBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	if f.maxBodyBytes > 0 && int64(len(data)) > f.maxBodyBytes {
		return nil, fmt.Errorf("gcs read %s: %w", key, ErrTooLarge)
	}
	return data, nil
}

// Close closes the storage client.
func (f *GCSFetcher) Close() error {
	return f.client.Close()
}

func parseGCSKey(key string) (bucket, object string, err error) {
	u, err := url.Parse(key)
	if err != nil {
		return "", "", fmt.Errorf("invalid gcs key %q: %w", key, err)
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("invalid gcs key %q: %w", key, ErrUnsupportedScheme)
	}
	object = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || object == "" {
		return "", "", fmt.Errorf("invalid gcs key %q: want gs://bucket/object", key)
	}
	return u.Host, object, nil
}
