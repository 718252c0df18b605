// Package handlers provides HTTP handlers for the collector.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/ubuntu/mail-reports-collector/internal/collector/metrics"
	"github.com/ubuntu/mail-reports-collector/internal/collector/middleware"
	"github.com/ubuntu/mail-reports-collector/internal/ingest"
	"github.com/ubuntu/mail-reports-collector/internal/report"
)

// Ingester runs the ingestion pipeline of a report.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Ingest is a handler receiving reports of a single kind.
type Ingest struct {
	kind          report.Kind
	ingester      Ingester
	maxUploadSize int64
	metrics       *metrics.Reports
}

// NewIngest creates a new Ingest handler for reports of kind k.
// Request bodies larger than maxUploadSize bytes are rejected, 0 disables the limit. m may be nil.
func NewIngest(k report.Kind, ingester Ingester, maxUploadSize int64, m *metrics.Reports) *Ingest {
	return &Ingest{
		kind:          k,
		ingester:      ingester,
		maxUploadSize: maxUploadSize,
		metrics:       m,
	}
}

// ServeHTTP handles an incoming report. It answers 201 with an empty body once the report is stored.
func (h *Ingest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = uuid.NewString()
	}
	slog.Info("Request recv'd", "req_id", reqID, "kind", h.kind, "method", r.Method,
		"content_type", r.Header.Get("Content-Type"), "content_encoding", r.Header.Get("Content-Encoding"))

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	res, err := h.ingester.Ingest(r.Context(), ingest.Request{
		Kind:            h.kind,
		Body:            r.Body,
		ContentType:     r.Header.Get("Content-Type"),
		ContentEncoding: r.Header.Get("Content-Encoding"),
	})
	if err != nil {
		code, reason := StatusFor(err)
		h.metrics.Rejected(h.kind, reason)
		if code >= http.StatusInternalServerError {
			slog.Error("Failed to store report", "req_id", reqID, "kind", h.kind, "err", err)
		} else {
			slog.Warn("Report rejected", "req_id", reqID, "kind", h.kind, "status", code, "err", err)
		}
		http.Error(w, http.StatusText(code), code)
		return
	}

	h.metrics.Stored(h.kind)
	attrs := []any{"req_id", reqID, "kind", h.kind, "target", res.Location}
	slog.Info("Report stored", append(attrs, summary(res.Payload)...)...)
	w.WriteHeader(http.StatusCreated)
}

// summary returns log attributes identifying a TLS report. Other payloads give none.
func summary(p report.Payload) []any {
	doc, ok := p.(report.JSONDocument)
	if !ok {
		return nil
	}
	tr, err := doc.TLSReport()
	if err != nil {
		return nil
	}
	return []any{"organization", tr.OrganizationName, "report_id", tr.ReportID}
}
