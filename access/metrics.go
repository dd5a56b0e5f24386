package access

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts request outcomes and session acquisitions.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	AttemptsTotal       *prometheus.CounterVec
	RetriesTotal        *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	SessionAcquisitions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taproom",
			Subsystem: "access",
			Name:      "requests_total",
			Help:      "Logical requests by method and outcome.",
		}, []string{"method", "outcome"}),
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taproom",
			Subsystem: "access",
			Name:      "attempts_total",
			Help:      "HTTP attempts, including retries.",
		}, []string{"method"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taproom",
			Subsystem: "access",
			Name:      "retries_total",
			Help:      "Attempts made after a retryable failure.",
		}, []string{"method"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taproom",
			Subsystem: "access",
			Name:      "request_duration_seconds",
			Help:      "Duration of logical requests including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		SessionAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taproom",
			Name:      "session_acquisitions_total",
			Help:      "Session acquisitions by result (held, shared, stored, refreshed, failed).",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.AttemptsTotal, m.RetriesTotal, m.RequestDuration, m.SessionAcquisitions)
	}
	return m
}
