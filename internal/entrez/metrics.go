package entrez

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vibe_rsid"

// Metrics are the Prometheus collectors updated by a Client.
type Metrics struct {
	Requests *prometheus.CounterVec // attempts by result: found, not_found, retryable, failed
	Retries  prometheus.Counter
	Results  *prometheus.CounterVec // queries by final Outcome
	InFlight prometheus.Gauge
}

// NewMetrics creates the client collectors and registers them on reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entrez",
			Name:      "requests_total",
			Help:      "E-utilities requests by result.",
		}, []string{"result"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entrez",
			Name:      "retries_total",
			Help:      "Requests repeated after a retryable failure.",
		}),
		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entrez",
			Name:      "queries_total",
			Help:      "Annotation queries by final outcome.",
		}, []string{"outcome"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "entrez",
			Name:      "in_flight_requests",
			Help:      "Requests currently waiting on the service.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Retries, m.Results, m.InFlight)
	}
	return m
}

func (m *Metrics) attempt(ids []string, err error) {
	switch {
	case err == nil && len(ids) > 0:
		m.Requests.WithLabelValues("found").Inc()
	case err == nil:
		m.Requests.WithLabelValues("not_found").Inc()
	case IsRetryable(err):
		m.Requests.WithLabelValues("retryable").Inc()
	default:
		m.Requests.WithLabelValues("failed").Inc()
	}
}
