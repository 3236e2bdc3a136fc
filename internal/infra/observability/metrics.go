package observability

import (
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	storeDuration  *prometheus.HistogramVec
	storeErrors    *prometheus.CounterVec
	mutations      *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	tokensUsed     *prometheus.CounterVec
	suggestions    *prometheus.CounterVec
	eventsTotal    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry lets tests call NewMetrics
// repeatedly without duplicate-collector panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		storeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finledger_store_duration_seconds",
				Help:    "Duration of record store calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_store_errors_total",
				Help: "Total record store failures by operation.",
			},
			[]string{"operation"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_ledger_mutations_total",
				Help: "Total successful ledger mutations by kind.",
			},
			[]string{"kind"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		suggestions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_suggestions_total",
				Help: "Suggestion requests by outcome.",
			},
			[]string{"status"},
		),
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finledger_ledger_events_total",
				Help: "Ledger events by direction and outcome.",
			},
			[]string{"direction", "status"},
		),
	}
}

// RecordStoreDuration records the duration of a store call.
func (m *Metrics) RecordStoreDuration(operation string, d time.Duration) {
	m.storeDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// IncrMutation counts a successful ledger mutation.
func (m *Metrics) IncrMutation(kind domain.LedgerEventKind) {
	m.mutations.WithLabelValues(string(kind)).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrSuggestion counts a suggestion request ("success", "fallback", "error").
func (m *Metrics) IncrSuggestion(status string) {
	m.suggestions.WithLabelValues(status).Inc()
}

// IncrEvent counts a published or consumed ledger event.
func (m *Metrics) IncrEvent(direction, status string) {
	m.eventsTotal.WithLabelValues(direction, status).Inc()
}

// Snapshot returns the cumulative counters as a JSON-friendly view for
// GET /v1/metrics/summary.
func (m *Metrics) Snapshot() *domain.MetricsSnapshot {
	mutations := make(map[string]float64)
	for _, kind := range []domain.LedgerEventKind{
		domain.EventExpenseAdded, domain.EventExpenseUpdated, domain.EventExpenseDeleted,
		domain.EventCreditAdded, domain.EventProfileUpdated,
	} {
		mutations[string(kind)] = getCounterValue(m.mutations, string(kind))
	}

	hits := getCounterValue(m.cacheHits, "summary")
	misses := getCounterValue(m.cacheMisses, "summary")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.MetricsSnapshot{
		Mutations:        mutations,
		CacheHitRate:     hitRate,
		PromptTokens:     int64(getCounterValue(m.tokensUsed, "prompt")),
		CompletionTokens: int64(getCounterValue(m.tokensUsed, "completion")),
		Suggestions:      int64(getCounterValue(m.suggestions, "success") + getCounterValue(m.suggestions, "fallback")),
		SuggestionErrors: int64(getCounterValue(m.suggestions, "error")),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec
// with a single label.
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
