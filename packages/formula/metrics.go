package formula

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the engine counters. a nil *metrics counts nothing.
type metrics struct {
	evaluations *prometheus.CounterVec
	tokenCache  *prometheus.CounterVec
	resolutions *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formula_evaluations_total",
				Help: "Formulas evaluated, by result (ok or the error literal).",
			},
			[]string{"result"},
		),
		tokenCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formula_token_cache_total",
				Help: "Token cache lookups and evictions.",
			},
			[]string{"outcome"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formula_resolutions_total",
				Help: "Cell resolutions, by path taken.",
			},
			[]string{"path"},
		),
	}
}

// register adds the counters to reg. counters already registered by another
// engine are shared.
func (m *metrics) register(reg prometheus.Registerer) error {
	collectors := []**prometheus.CounterVec{&m.evaluations, &m.tokenCache, &m.resolutions}
	for _, c := range collectors {
		if err := reg.Register(*c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return err
			}
			*c = existing
		}
	}
	return nil
}

func (m *metrics) evaluation(result Value) {
	if m == nil {
		return
	}
	label := "ok"
	if IsError(result) {
		label = string(result.Code())
	}
	m.evaluations.WithLabelValues(label).Inc()
}

func (m *metrics) cache(outcome string) {
	if m == nil {
		return
	}
	m.tokenCache.WithLabelValues(outcome).Inc()
}

func (m *metrics) resolution(path string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(path).Inc()
}
