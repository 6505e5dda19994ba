package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide HTTP metrics. Domain counters live with
// their modules (internal/donation/metrics, internal/charity/metrics).
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	ProfilesCreated prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chariblock_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method", "status"}),
		ProfilesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "chariblock_profiles_created_total",
			Help: "Total number of wallet profiles created",
		}),
	}
}

// ObserveRequestLatency records one served request.
func (m *Metrics) ObserveRequestLatency(route, method string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// IncrementProfilesCreated increments the profiles created counter by 1
func (m *Metrics) IncrementProfilesCreated() {
	m.ProfilesCreated.Inc()
}
