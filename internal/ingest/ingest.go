// Package ingest turns incoming report bodies into stored reports.
//
// It negotiates the declared format, decodes and validates the body, then hands the decoded payload to a storage
// sink. Every rejection is reported as one of the package sentinel errors.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/ubuntu/mail-reports-collector/internal/report"
	"github.com/ubuntu/mail-reports-collector/internal/storage"
)

// Request is a report as received by the collector.
type Request struct {
	Kind            report.Kind
	Body            io.Reader
	ContentType     string
	ContentEncoding string
}

// Result describes a stored report.
type Result struct {
	// Location is where the report was stored. It is empty when the sink discards reports.
	Location string
	Payload  report.Payload
}

// Service runs the ingestion pipeline.
type Service struct {
	decoder Decoder
	sink    storage.Sink
}

// New returns a Service storing reports in sink, rejecting bodies larger than maxSize bytes once inflated.
func New(sink storage.Sink, maxSize int64) *Service {
	return &Service{
		decoder: NewDecoder(maxSize),
		sink:    sink,
	}
}

// Ingest negotiates, decodes and stores the report carried by req.
// The body is not read when its declared format is not accepted, and the sink is not called when decoding fails.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	f, err := Negotiate(req.Kind, req.ContentType, req.ContentEncoding)
	if err != nil {
		return Result{}, err
	}

	p, err := s.decoder.Decode(req.Kind, f, req.Body)
	if err != nil {
		return Result{}, err
	}

	loc, err := s.sink.Store(ctx, p)
	if err != nil {
		return Result{Payload: p}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return Result{Location: loc, Payload: p}, nil
}
