package metrics

import (
	"context"
	"net/http"

	"github.com/asnowfix/homecontrol/myhome/control"
	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const NAMESPACE = "myhome"

// Metrics are kept in their own registry so several controllers (and
// tests) can live in one process.
type Metrics struct {
	registry      *prometheus.Registry
	polls         *prometheus.CounterVec
	dispatches    *prometheus.CounterVec
	records       *prometheus.CounterVec
	contacts      *prometheus.GaugeVec
	readings      *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
	cycles        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "sensor_polls_total",
			Help:      "Sensor polls by result (ok or error kind).",
		}, []string{"result"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "actuator_dispatches_total",
			Help:      "Corrective commands by command and result.",
		}, []string{"command", "result"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "discovery_records_total",
			Help:      "Browsed DNS-SD records by role and outcome.",
		}, []string{"role", "result"}),
		contacts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "contacts",
			Help:      "Known devices by role.",
		}, []string{"role"}),
		readings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "sensor_reading",
			Help:      "Latest numeric reading by sensor id and unit.",
		}, []string{"id", "unit"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a poll/decide/dispatch cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "cycles_total",
			Help:      "Completed control cycles.",
		}),
	}
	m.registry.MustRegister(m.polls, m.dispatches, m.records, m.contacts, m.readings, m.cycleDuration, m.cycles)
	return m
}

// Observe implements control.Observer.
func (m *Metrics) Observe(ctx context.Context, c control.Cycle) {
	m.cycles.Inc()
	m.cycleDuration.Observe(c.Duration.Seconds())
	for _, o := range c.Outcomes {
		if !o.Read() {
			m.polls.WithLabelValues(control.ErrorKind(o.ReadErr)).Inc()
			continue
		}
		m.polls.WithLabelValues("ok").Inc()
		m.readings.WithLabelValues(o.Id.String(), o.Datum.Unit.String()).Set(o.Datum.Value.Number())
		if o.Command == nil {
			continue
		}
		result := "ok"
		if !o.Dispatched() {
			result = control.ErrorKind(o.DispatchErr)
		}
		m.dispatches.WithLabelValues(o.Command.Name(), result).Inc()
	}
}

// ContactsChanged is meant for contacts.Registry.OnChange.
func (m *Metrics) ContactsChanged(role devices.Role, size int) {
	m.contacts.WithLabelValues(role.String()).Set(float64(size))
}

// RecordBrowsed is meant for watch.WithRecordHook.
func (m *Metrics) RecordBrowsed(role devices.Role, result string) {
	m.records.WithLabelValues(role.String(), result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
