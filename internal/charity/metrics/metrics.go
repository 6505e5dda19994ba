package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for charity onboarding and review.
type Metrics struct {
	CharitiesCreated prometheus.Counter
	StatusChanges    *prometheus.CounterVec
	DocumentUploads  *prometheus.CounterVec
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CharitiesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "chariblock_charities_created_total",
			Help: "Total number of charities submitted for review",
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chariblock_charity_status_changes_total",
			Help: "Charity review decisions by resulting status",
		}, []string{"status"}),
		DocumentUploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chariblock_document_uploads_total",
			Help: "Supporting document uploads by outcome",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.CharitiesCreated.Inc()
}

func (m *Metrics) IncrementStatusChange(status string) {
	m.StatusChanges.WithLabelValues(status).Inc()
}

// IncrementUpload records one document upload; result is "ok" or "failed".
func (m *Metrics) IncrementUpload(result string) {
	m.DocumentUploads.WithLabelValues(result).Inc()
}
