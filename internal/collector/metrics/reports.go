package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ubuntu/mail-reports-collector/internal/report"
)

// Reports counts the outcome of report submissions. A nil *Reports records nothing.
type Reports struct {
	stored   *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewReports registers the report counters in registry.
func NewReports(registry prometheus.Registerer) *Reports {
	return &Reports{
		stored: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_stored_total",
				Help: "Tracks the number of reports accepted and stored, by kind.",
			}, []string{"kind"},
		),
		rejected: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_rejected_total",
				Help: "Tracks the number of reports that couldn't be stored, by kind and reason.",
			}, []string{"kind", "reason"},
		),
	}
}

// Stored records a stored report of kind k.
func (m *Reports) Stored(k report.Kind) {
	if m == nil {
		return
	}
	m.stored.WithLabelValues(k.String()).Inc()
}

// Rejected records a report of kind k that wasn't stored for reason.
func (m *Reports) Rejected(k report.Kind, reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(k.String(), reason).Inc()
}
