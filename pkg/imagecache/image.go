package imagecache

import (
	"bytes"
	"image"
	"mime"
)

// Image is a cached, ready-to-display image. It is never mutated after
// creation; callers must treat Data as read-only.
type Image struct {
	// Key is the canonical URL the image was fetched from.
	Key string
	// Data holds the encoded image: the recompressed JPEG, or the fetched
	// bytes when recompression failed.
	Data []byte
	// Format is the encoding of Data ("jpeg", "png", "gif", "webp").
	Format string
	// SourceFormat is the encoding of the fetched bytes.
	SourceFormat string
	// SourceSize is the length of the fetched bytes.
	SourceSize int
	Width      int
	Height     int
	// Recompressed reports whether Data is the recompressed encoding.
	Recompressed bool
}

// Cost is the number of bytes the image accounts for in the store.
func (i *Image) Cost() int64 {
	return int64(len(i.Data))
}

// ContentType returns the MIME type of Data.
func (i *Image) ContentType() string {
	if t := mime.TypeByExtension("." + i.Format); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Decode decodes Data into pixels.
func (i *Image) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(i.Data))
	return img, err
}
