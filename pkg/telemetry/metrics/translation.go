package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TranslationMetrics tracks translation attempts and the translation cache.
//
// Metrics:
//   - guardrails_translations_total: Attempts by outcome (translated, failed)
//   - guardrails_translation_cache_hits_total: Cache hits
//   - guardrails_translation_cache_misses_total: Cache misses
//   - guardrails_translation_cache_entries: Entries held by the memory cache
type TranslationMetrics struct {
	translationsTotal *prometheus.CounterVec
	hitsTotal         prometheus.Counter
	missesTotal       prometheus.Counter

	namespace string
	registry  *prometheus.Registry
	sizeOnce  sync.Once
}

// NewTranslationMetrics creates and registers translation metrics.
func NewTranslationMetrics(namespace string, registry *prometheus.Registry) *TranslationMetrics {
	tm := &TranslationMetrics{
		translationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translations_total",
				Help:      "Total number of translation attempts",
			},
			[]string{"outcome"},
		),

		hitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translation_cache_hits_total",
				Help:      "Total number of translation cache hits",
			},
		),

		missesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translation_cache_misses_total",
				Help:      "Total number of translation cache misses",
			},
		),

		namespace: namespace,
		registry:  registry,
	}

	registry.MustRegister(
		tm.translationsTotal,
		tm.hitsTotal,
		tm.missesTotal,
	)

	return tm
}

// RecordTranslation records one translation attempt.
func (tm *TranslationMetrics) RecordTranslation(outcome string) {
	tm.translationsTotal.WithLabelValues(outcome).Inc()
}

// RecordHit records a cache hit.
func (tm *TranslationMetrics) RecordHit() {
	tm.hitsTotal.Inc()
}

// RecordMiss records a cache miss.
func (tm *TranslationMetrics) RecordMiss() {
	tm.missesTotal.Inc()
}

// TrackSize registers a gauge reading size at scrape time. Only the first
// call has an effect.
func (tm *TranslationMetrics) TrackSize(size func() int) {
	tm.sizeOnce.Do(func() {
		tm.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: tm.namespace,
				Name:      "translation_cache_entries",
				Help:      "Current number of entries in the translation cache",
			},
			func() float64 { return float64(size()) },
		))
	})
}
