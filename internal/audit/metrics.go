package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the last audit as gauges. A nil *Metrics records nothing.
type Metrics struct {
	assignments *prometheus.GaugeVec
	anomalies   *prometheus.GaugeVec
	lastRun     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		assignments: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chitfund_role_assignments",
				Help: "Users resolving their permissions through each role",
			},
			[]string{"role"},
		),
		anomalies: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chitfund_access_anomalies",
				Help: "Users whose assignment falls back or locks them out, by kind",
			},
			[]string{"kind"},
		),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chitfund_access_audit_last_run_timestamp_seconds",
			Help: "Unix time of the last completed access audit",
		}),
	}
}

func (m *Metrics) Record(r *Report) {
	if m == nil {
		return
	}
	// roles may have been deleted since the previous run
	m.assignments.Reset()
	for name, n := range r.Assignments {
		m.assignments.WithLabelValues(name).Set(float64(n))
	}
	for _, kind := range []string{KindMissingRole, KindInactiveRole, KindEmptyOverride} {
		m.anomalies.WithLabelValues(kind).Set(float64(len(r.Anomalies[kind])))
	}
	m.lastRun.Set(float64(r.CheckedAt.Unix()))
}

func (m *Metrics) Assignments() *prometheus.GaugeVec {
	return m.assignments
}

func (m *Metrics) Anomalies() *prometheus.GaugeVec {
	return m.anomalies
}
