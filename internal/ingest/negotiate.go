package ingest

import (
	"fmt"
	"mime"
	"strings"

	"github.com/ubuntu/mail-reports-collector/internal/report"
)

// Content encodings understood by the Decoder.
const (
	EncodingNone    = ""
	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
)

// Format is the canonical content type and encoding of a report body.
type Format struct {
	MediaType string
	Params    map[string]string
	Encoding  string
}

// Charset returns the lower-cased charset parameter, or an empty string if none was declared.
func (f Format) Charset() string {
	return strings.ToLower(strings.TrimSpace(f.Params["charset"]))
}

type route struct {
	// wrapper is the media type declaring a gzip compressed body of media type wrapped.
	wrapper string
	wrapped string

	accepted []string
}

var routes = map[report.Kind]route{
	report.TLSRPT: {
		wrapper:  "application/tlsrpt+gzip",
		wrapped:  "application/tlsrpt+json",
		accepted: []string{"application/tlsrpt+json", "application/json"},
	},
	report.DMARC: {
		wrapper:  "application/gzip",
		wrapped:  "application/xml",
		accepted: []string{"application/xml"},
	},
}

// Negotiate maps the declared content type and encoding of a report of kind k to its canonical Format.
//
// A wrapper media type (application/tlsrpt+gzip for TLS reports, application/gzip for DMARC reports) declares a
// gzip compressed body of the report media type. The decision only depends on the declared headers.
func Negotiate(k report.Kind, contentType, contentEncoding string) (Format, error) {
	r, ok := routes[k]
	if !ok {
		return Format{}, fmt.Errorf("%w: unknown report kind %v", ErrUnsupportedMediaType, k)
	}

	if strings.TrimSpace(contentType) == "" {
		return Format{}, fmt.Errorf("%w: missing content type", ErrUnsupportedMediaType)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Format{}, fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
	}

	f := Format{
		MediaType: mediaType,
		Params:    params,
		Encoding:  strings.ToLower(strings.TrimSpace(contentEncoding)),
	}
	if f.MediaType == r.wrapper {
		f.MediaType = r.wrapped
		f.Encoding = EncodingGzip
	}

	if !accepts(r, f.MediaType) {
		return Format{}, fmt.Errorf("%w: %q for %s reports", ErrUnsupportedMediaType, mediaType, k)
	}

	switch f.Encoding {
	case EncodingNone, "identity":
		f.Encoding = EncodingNone
	case EncodingGzip, "x-gzip":
		f.Encoding = EncodingGzip
	case EncodingDeflate:
	default:
		return Format{}, fmt.Errorf("%w: content encoding %q", ErrUnsupportedMediaType, contentEncoding)
	}

	return f, nil
}

func accepts(r route, mediaType string) bool {
	for _, t := range r.accepted {
		if t == mediaType {
			return true
		}
	}
	return false
}
