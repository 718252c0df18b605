package handlers

import (
	"errors"
	"net/http"

	"github.com/ubuntu/mail-reports-collector/internal/ingest"
)

// StatusFor returns the HTTP status answered for an ingestion error, and the reason recorded in metrics.
func StatusFor(err error) (code int, reason string) {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, ingest.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, ingest.ErrPayloadTooLarge), errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ingest.ErrMalformedEncoding):
		return http.StatusBadRequest, "malformed_encoding"
	case errors.Is(err, ingest.ErrMalformedPayload):
		return http.StatusBadRequest, "malformed_payload"
	case errors.Is(err, ingest.ErrIncompleteBody):
		return http.StatusBadRequest, "incomplete_body"
	case errors.Is(err, ingest.ErrStorage):
		return http.StatusInternalServerError, "storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
