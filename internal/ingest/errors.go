package ingest

import "errors"

var (
	// ErrUnsupportedMediaType is returned when the declared content type, charset or content encoding is not
	// accepted for the report kind.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrMalformedEncoding is returned when a compressed body can't be inflated.
	ErrMalformedEncoding = errors.New("malformed content encoding")

	// ErrMalformedPayload is returned when the body doesn't have the structure required by the report kind.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrPayloadTooLarge is returned when the body, compressed or not, exceeds the configured limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrIncompleteBody is returned when the body couldn't be read to its end.
	ErrIncompleteBody = errors.New("incomplete request body")

	// ErrStorage is returned when a decoded report couldn't be persisted.
	ErrStorage = errors.New("storage failure")
)
