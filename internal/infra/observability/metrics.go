package observability

import (
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the fiscal engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	statesRecomputed  *prometheus.CounterVec
	malformedRecords  *prometheus.CounterVec
	schemaFallbacks   *prometheus.CounterVec
	regimeComparisons *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fiscal_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_store_errors_total",
				Help: "Total errors from the relational store.",
			},
			[]string{"relation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		statesRecomputed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_states_recomputed_total",
				Help: "Total obligation state pairs recomputed and written back.",
			},
			[]string{"kind"},
		),
		malformedRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_malformed_records_total",
				Help: "Total stored records skipped during normalization.",
			},
			[]string{"source"},
		),
		schemaFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_schema_fallbacks_total",
				Help: "Total reads served by the legacy schema.",
			},
			[]string{"kind"},
		),
		regimeComparisons: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiscal_regime_comparisons_total",
				Help: "Total tax regime comparisons by winning regime.",
			},
			[]string{"best_regime"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter for a relation.
func (m *Metrics) IncrStoreError(relation string) {
	m.storeErrors.WithLabelValues(relation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// AddStatesRecomputed records n state-pair writebacks for a kind.
func (m *Metrics) AddStatesRecomputed(kind string, n int) {
	m.statesRecomputed.WithLabelValues(kind).Add(float64(n))
}

// IncrMalformedRecord counts a record skipped during normalization.
func (m *Metrics) IncrMalformedRecord(source string) {
	m.malformedRecords.WithLabelValues(source).Inc()
}

// IncrSchemaFallback counts a read served by the legacy schema.
func (m *Metrics) IncrSchemaFallback(kind string) {
	m.schemaFallbacks.WithLabelValues(kind).Inc()
}

// IncrRegimeComparison counts a comparison by its winning regime.
func (m *Metrics) IncrRegimeComparison(bestRegime string) {
	m.regimeComparisons.WithLabelValues(bestRegime).Inc()
}

// GetEngineSnapshot returns a snapshot of engine counters suitable for the
// GET /v1/metrics/engine endpoint.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	// Prometheus counters expose cumulative values.
	recomputed := getCounterValue(m.statesRecomputed, string(domain.KindPayable)) +
		getCounterValue(m.statesRecomputed, string(domain.KindReceivable))
	malformed := getCounterValue(m.malformedRecords, "primary") +
		getCounterValue(m.malformedRecords, "legacy")
	fallbacks := getCounterValue(m.schemaFallbacks, string(domain.KindPayable)) +
		getCounterValue(m.schemaFallbacks, string(domain.KindReceivable))
	comparisons := getCounterValue(m.regimeComparisons, string(domain.RegimeSimples)) +
		getCounterValue(m.regimeComparisons, string(domain.RegimePresumido)) +
		getCounterValue(m.regimeComparisons, string(domain.RegimeReal))
	cacheHits := getCounterValue(m.cacheHits, "periods")
	cacheMisses := getCounterValue(m.cacheMisses, "periods")

	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.EngineMetrics{
		StatesRecomputed:  int64(recomputed),
		MalformedRecords:  int64(malformed),
		SchemaFallbacks:   int64(fallbacks),
		RegimeComparisons: int64(comparisons),
		CacheHitRate:      cacheHitRate,
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
