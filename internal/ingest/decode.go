package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/ubuntu/mail-reports-collector/internal/report"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoder turns a report body into a report.Payload.
type Decoder struct {
	maxSize int64
}

// NewDecoder returns a Decoder rejecting inflated bodies larger than maxSize bytes.
// A maxSize of 0 or less disables the limit.
func NewDecoder(maxSize int64) Decoder {
	return Decoder{maxSize: maxSize}
}

// Decode reads body, inflates it according to f and decodes it as a report of kind k.
func (d Decoder) Decode(k report.Kind, f Format, body io.Reader) (report.Payload, error) {
	data, err := d.read(f.Encoding, body)
	if err != nil {
		return nil, err
	}

	switch k {
	case report.TLSRPT:
		return decodeTLSRPT(f, data)
	case report.DMARC:
		return decodeDMARC(f, data)
	default:
		return nil, fmt.Errorf("%w: unknown report kind %v", ErrUnsupportedMediaType, k)
	}
}

func (d Decoder) read(enc string, body io.Reader) ([]byte, error) {
	r := body
	switch enc {
	case EncodingNone:
	case EncodingGzip:
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, readError(err, true)
		}
		defer zr.Close()
		r = zr
	case EncodingDeflate:
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, readError(err, true)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("%w: content encoding %q", ErrUnsupportedMediaType, enc)
	}

	if d.maxSize > 0 {
		r = io.LimitReader(r, d.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, readError(err, enc != EncodingNone)
	}
	if d.maxSize > 0 && int64(len(data)) > d.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes once decoded", ErrPayloadTooLarge, d.maxSize)
	}
	return data, nil
}

// readError classifies an error returned while reading a body, possibly through a decompressor.
func readError(err error, compressed bool) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	}
	if compressed {
		return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return fmt.Errorf("%w: %v", ErrIncompleteBody, err)
}

func decodeTLSRPT(f Format, data []byte) (report.Payload, error) {
	switch f.Charset() {
	case "", "utf-8", "utf8":
	default:
		return nil, fmt.Errorf("%w: charset %q", ErrUnsupportedMediaType, f.Charset())
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty report", ErrMalformedPayload)
	}
	// json.Valid doesn't check the content of strings.
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid utf-8", ErrMalformedPayload)
	}

	doc, err := report.NewJSONDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return doc, nil
}

func decodeDMARC(f Format, data []byte) (report.Payload, error) {
	charset := f.Charset()
	if charset == "" {
		charset = "utf-8"
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: charset %q", ErrUnsupportedMediaType, charset)
	}

	if name, _ := htmlindex.Name(enc); name != "utf-8" {
		if data, err = enc.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("%w: not valid %s: %v", ErrMalformedPayload, charset, err)
		}
	}

	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid %s", ErrMalformedPayload, charset)
	}
	return report.NewTextDocument(string(bytes.TrimPrefix(data, utf8BOM))), nil
}
