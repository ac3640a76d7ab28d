package imagecache_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockFetcher is a test double for the fetch collaborator. It counts calls per
// key and can hold every fetch until release is closed.
type mockFetcher struct {
	FetchFunc func(ctx context.Context, key string) ([]byte, error)
	release   chan struct{}

	calls  atomic.Int32
	mu     sync.Mutex
	perKey map[string]int
	closed bool
}

func newMockFetcher(fn func(ctx context.Context, key string) ([]byte, error)) *mockFetcher {
	return &mockFetcher{FetchFunc: fn, perKey: make(map[string]int)}
}

// gated makes every fetch wait for Release.
func (m *mockFetcher) gated() *mockFetcher {
	m.release = make(chan struct{})
	return m
}

func (m *mockFetcher) Release() { close(m.release) }

func (m *mockFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.perKey[key]++
	m.mu.Unlock()

	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.FetchFunc(ctx, key)
}

func (m *mockFetcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockFetcher) CallsFor(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perKey[key]
}

// fixedCodec decodes anything into a blank 10x10 image and recompresses to a
// buffer of a fixed size so tests can control entry costs. Bodies starting
// with "bad" pass the header check but fail to decode.
type fixedCodec struct {
	size           int
	failRecompress bool
}

func (f fixedCodec) DecodeConfig([]byte) (image.Config, string, error) {
	return image.Config{ColorModel: color.RGBAModel, Width: 10, Height: 10}, "png", nil
}

func (f fixedCodec) Decode(data []byte) (image.Image, string, error) {
	if bytes.HasPrefix(data, []byte("bad")) {
		return nil, "", errors.New("unsupported format")
	}
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), "png", nil
}

func (f fixedCodec) Recompress(image.Image, int) ([]byte, error) {
	if f.failRecompress {
		return nil, errors.New("encoder exploded")
	}
	return make([]byte, f.size), nil
}

// pngBytes renders a w x h gradient as PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h
// grayscale canvas, with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth; color type, compression, filter and interlace stay 0

	chunk := make([]byte, 0, 12+len(ihdr))
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(ihdr)))
	chunk = append(chunk, "IHDR"...)
	chunk = append(chunk, ihdr...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	return append([]byte("\x89PNG\r\n\x1a\n"), chunk...)
}

func staticFetch(data []byte) func(context.Context, string) ([]byte, error) {
	return func(context.Context, string) ([]byte, error) { return data, nil }
}
