package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Rejection reasons used as the "reason" label.
const (
	ReasonDuplicate        = "duplicate_transaction"
	ReasonUnknownCharity   = "charity_not_found"
	ReasonInvalidAmount    = "invalid_amount"
	ReasonInvalidInput     = "invalid_input"
	ReasonStoreUnavailable = "timeout"
	ReasonInternal         = "internal_error"
)

// Metrics tracks the donation ledger.
type Metrics struct {
	Recorded       prometheus.Counter
	Rejected       *prometheus.CounterVec
	AmountRecorded prometheus.Counter
	RecordDuration prometheus.Histogram
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recorded: f.NewCounter(prometheus.CounterOpts{
			Name: "chariblock_donations_recorded_total",
			Help: "Total number of donations accepted into the ledger",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chariblock_donations_rejected_total",
			Help: "Donations refused by the ledger, by reason",
		}, []string{"reason"}),
		AmountRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "chariblock_donation_amount_total",
			Help: "Sum of accepted donation amounts (float approximation; the ledger is authoritative)",
		}),
		RecordDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chariblock_record_donation_duration_seconds",
			Help:    "Duration of RecordDonation including the store transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
	}
}

// IncrementRecorded records an accepted donation of amount.
func (m *Metrics) IncrementRecorded(amount decimal.Decimal) {
	m.Recorded.Inc()
	m.AmountRecorded.Add(amount.InexactFloat64())
}

func (m *Metrics) IncrementRejected(reason string) {
	m.Rejected.WithLabelValues(reason).Inc()
}

// ObserveRecord records the duration of a RecordDonation call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRecord(start time.Time) {
	m.RecordDuration.Observe(time.Since(start).Seconds())
}
