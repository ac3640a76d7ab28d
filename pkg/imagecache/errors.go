package imagecache

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is reported with every result that carries no image.
	ErrUnavailable = errors.New("image unavailable")
	// ErrFetch classifies transport failures and non-success responses.
	ErrFetch = errors.New("fetch failed")
	// ErrDecode classifies fetched bytes that are not a decodable image.
	ErrDecode = errors.New("decode failed")
	// ErrTooManyPixels classifies images whose declared dimensions exceed
	// Config.MaxPixels. It is always reported inside a DecodeError.
	ErrTooManyPixels = errors.New("image exceeds the pixel budget")
	// ErrClosed is returned for requests made after Close.
	ErrClosed = errors.New("image cache is closed")
)

// FetchError is a failure of the fetch collaborator for a key.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// DecodeError means the bytes fetched for a key are not a supported image.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }
