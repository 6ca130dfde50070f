package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the student API.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	StudentsTotal     prometheus.GaugeFunc
	ServerErrorsTotal prometheus.Counter
}

// NewMetrics registers all metrics with reg. countStudents is sampled on
// every scrape.
func NewMetrics(reg prometheus.Registerer, countStudents func() int) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_requests_total",
			Help: "Total number of routed requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		StudentsTotal: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gradebook_students",
			Help: "Number of stored students",
		}, func() float64 { return float64(countStudents()) }),
		ServerErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gradebook_server_errors_total",
			Help: "Total number of requests that failed with a server error",
		}),
	}
}

// ObserveRequest counts a request routed to route, the matched pattern rather
// than the raw path.
func (m *Metrics) ObserveRequest(method, route string, code int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// IncrementServerErrors increments the gradebook_server_errors_total counter.
func (m *Metrics) IncrementServerErrors() {
	if m == nil {
		return
	}
	m.ServerErrorsTotal.Inc()
}
