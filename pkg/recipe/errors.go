package recipe

import "errors"

var (
	// ErrInvalidURL means a request URL could not be built.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidResponse means the API answered with a non-200 status.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrInvalidData means the payload decoded but did not hold exactly one meal.
	ErrInvalidData = errors.New("invalid data")
	// ErrDecoding means the payload was not the expected JSON.
	ErrDecoding = errors.New("decoding error")
	// ErrUnsupportedURL means the request failed in transport.
	ErrUnsupportedURL = errors.New("unsupported url")
)
