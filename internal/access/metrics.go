package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts access decisions. A nil *Metrics records nothing.
type Metrics struct {
	routeDecisions *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
}

// NewMetrics registers the counters with reg. A nil reg leaves them
// unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		routeDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chitfund_route_decisions_total",
				Help: "Total number of route guard decisions by reason",
			},
			[]string{"reason"},
		),
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chitfund_permission_resolutions_total",
				Help: "Total number of effective permission resolutions by source",
			},
			[]string{"source"},
		),
	}
}

func (m *Metrics) ObserveDecision(d Decision) {
	if m == nil {
		return
	}
	m.routeDecisions.WithLabelValues(string(d.Reason)).Inc()
}

func (m *Metrics) ObserveResolution(src Source) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(string(src)).Inc()
}

func (m *Metrics) RouteDecisions() *prometheus.CounterVec {
	return m.routeDecisions
}

func (m *Metrics) Resolutions() *prometheus.CounterVec {
	return m.resolutions
}
