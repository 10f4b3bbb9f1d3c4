package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payledger"

// Outcomes of webhook ingestion
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Collectors of the service, registered in own registry
type Metrics struct {
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	duration prometheus.Histogram
	retries  prometheus.Counter

	discrepancies prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Bank webhook events by ingestion outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "balance_mutation_duration_seconds",
			Help:      "Duration of balance mutation transactions including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_mutation_retries_total",
			Help:      "Balance mutations retried after transient database errors.",
		}),
		discrepancies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_discrepancies",
			Help:      "Organizations whose balance differs from the sum of their balance log, as of the last check.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events,
		m.duration,
		m.retries,
		m.discrepancies,
	)

	return m
}

func (m *Metrics) ObserveEvent(outcome string) {
	m.events.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveMutation(d time.Duration) {
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRetry() {
	m.retries.Inc()
}

func (m *Metrics) SetDiscrepancies(n int) {
	m.discrepancies.Set(float64(n))
}

// Handler with exposition of the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
