// Package report defines the kinds of reports accepted by the collector and their decoded payloads.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the kind of an aggregate report.
type Kind int

const (
	// TLSRPT is an SMTP TLS report, transmitted as JSON.
	TLSRPT Kind = iota
	// DMARC is a DMARC aggregate report, transmitted as XML.
	DMARC
)

// String returns the kind tag used in file names and logs.
func (k Kind) String() string {
	switch k {
	case TLSRPT:
		return "tls-rpt"
	case DMARC:
		return "dmarc"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Extension returns the file extension, including the dot, of stored reports of this kind.
func (k Kind) Extension() string {
	if k == TLSRPT {
		return ".json"
	}
	return ".xml"
}

// FileSuffix returns the suffix of stored report names, e.g. "tls-rpt-report.json".
func (k Kind) FileSuffix() string {
	return k.String() + "-report" + k.Extension()
}

// StoredMediaType returns the media type of the stored representation.
func (k Kind) StoredMediaType() string {
	if k == TLSRPT {
		return "application/json"
	}
	return "application/xml"
}

// Payload is a decoded report ready to be stored.
type Payload interface {
	// Kind returns the kind of the report.
	Kind() Kind
	// Encode returns the representation written to storage.
	Encode() ([]byte, error)
}

// ErrNotJSONContainer is returned when a JSON document is valid but is neither an object nor an array.
var ErrNotJSONContainer = errors.New("JSON document is not an object or an array")

// JSONDocument is a well-formed JSON value. It is not validated against any schema.
type JSONDocument struct {
	raw json.RawMessage
}

// NewJSONDocument returns a JSONDocument for data, which must be a JSON object or array.
func NewJSONDocument(data []byte) (JSONDocument, error) {
	if !json.Valid(data) {
		var v any
		// json.Valid doesn't say what is wrong, Unmarshal does.
		err := json.Unmarshal(data, &v)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return JSONDocument{}, err
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return JSONDocument{}, ErrNotJSONContainer
	}
	return JSONDocument{raw: bytes.Clone(data)}, nil
}

// Kind implements Payload.
func (JSONDocument) Kind() Kind {
	return TLSRPT
}

// Encode returns the document pretty printed with a two spaces indent.
// Key order and number literals are preserved.
func (d JSONDocument) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(d.raw), "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Raw returns the document as received.
func (d JSONDocument) Raw() json.RawMessage {
	return d.raw
}

// TLSReport decodes the document as a TLS report.
// Missing fields are left empty: the result only identifies the report in logs.
func (d JSONDocument) TLSReport() (TLSReport, error) {
	var r TLSReport
	if err := json.Unmarshal(d.raw, &r); err != nil {
		return TLSReport{}, err
	}
	return r, nil
}

// TextDocument is an opaque UTF-8 text document, stored as is.
type TextDocument struct {
	text string
}

// NewTextDocument returns a TextDocument holding text.
func NewTextDocument(text string) TextDocument {
	return TextDocument{text: text}
}

// Kind implements Payload.
func (TextDocument) Kind() Kind {
	return DMARC
}

// Encode returns the text unchanged.
func (d TextDocument) Encode() ([]byte, error) {
	return []byte(d.text), nil
}

// Text returns the document content.
func (d TextDocument) Text() string {
	return d.text
}
