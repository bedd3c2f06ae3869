// Package metrics exposes scoring counters in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flashcard_frenzy"

// Metrics owns its registry so tests and multiple servers never collide on
// the global default.
type Metrics struct {
	registry       *prometheus.Registry
	answers        *prometheus.CounterVec
	ledgerFailures prometheus.Counter
	scoreFailures  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_scored_total",
			Help:      "Answers scored, by result.",
		}, []string{"result"}),
		ledgerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_append_failures_total",
			Help:      "Answers whose score was applied but whose ledger row was not written.",
		}),
		scoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_update_failures_total",
			Help:      "Score increments that failed in storage.",
		}),
	}
	m.registry.MustRegister(
		m.answers,
		m.ledgerFailures,
		m.scoreFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) AnswerScored(result string) { m.answers.WithLabelValues(result).Inc() }

func (m *Metrics) LedgerAppendFailed() { m.ledgerFailures.Inc() }

func (m *Metrics) ScoreUpdateFailed() { m.scoreFailures.Inc() }

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
