package imagecache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/webp"
)

// DefaultQuality is the JPEG quality used to recompress fetched images.
// It favours memory savings over fidelity.
const DefaultQuality = 40

// Codec decodes fetched bytes and recompresses decoded images.
type Codec interface {
	// DecodeConfig returns the dimensions and format name of data without
	// decoding its pixels.
	DecodeConfig(data []byte) (image.Config, string, error)
	// Decode returns the image and its format name ("jpeg", "png", ...).
	Decode(data []byte) (image.Image, string, error)
	// Recompress encodes img at the given quality (1-100).
	Recompress(img image.Image, quality int) ([]byte, error)
}

// JPEGCodec decodes JPEG, PNG, GIF and WebP and recompresses to JPEG.
type JPEGCodec struct{}

// DecodeConfig reads only the image header.
func (JPEGCodec) DecodeConfig(data []byte) (image.Config, string, error) {
	if err := sniff(data); err != nil {
		return image.Config{}, "", err
	}
	return image.DecodeConfig(bytes.NewReader(data))
}

// Decode sniffs data before decoding so that non-image payloads, such as an
// HTML error page served with a 200, fail with a readable reason.
func (JPEGCodec) Decode(data []byte) (image.Image, string, error) {
	if err := sniff(data); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// Recompress encodes img as a JPEG.
func (JPEGCodec) Recompress(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sniff(data []byte) error {
	kind, err := filetype.Match(data)
	if err != nil {
		return fmt.Errorf("failed to determine file type: %w", err)
	}
	if !filetype.IsImage(data) {
		return fmt.Errorf("content is not an image: %q", kind.Extension)
	}
	return nil
}
