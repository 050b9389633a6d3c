package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quote_proxy"

// Cache lookup outcomes
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupStale = "stale"
	LookupError = "error"
)

// QuoteMetrics groups the counters of the quote path.
type QuoteMetrics struct {
	CacheLookups     *prometheus.CounterVec
	UpstreamFetches  *prometheus.CounterVec
	UpstreamAttempts prometheus.Counter
	CoalescedWaits   prometheus.Counter
	StoreErrors      *prometheus.CounterVec
	SweptRows        prometheus.Counter
}

// -----------------------------------------------------------------------------

// NewQuoteMetrics creates the counters and registers them on reg.
func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	m := &QuoteMetrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by outcome.",
		}, []string{"result"}),
		UpstreamFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetches_total",
			Help:      "Upstream chart fetches by outcome.",
		}, []string{"outcome"}),
		UpstreamAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "HTTP attempts against the provider, retries included.",
		}),
		CoalescedWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_requests_total",
			Help:      "Requests answered by an upstream fetch shared with other callers.",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Cache store failures by operation.",
		}, []string{"op"}),
		SweptRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_rows_total",
			Help:      "Rows deleted by the retention sweep.",
		}),
	}

	reg.MustRegister(
		m.CacheLookups,
		m.UpstreamFetches,
		m.UpstreamAttempts,
		m.CoalescedWaits,
		m.StoreErrors,
		m.SweptRows,
	)
	return m
}

// -----------------------------------------------------------------------------

// NewUnregistered is for tests and tools that do not expose /metrics.
func NewUnregistered() *QuoteMetrics {
	return NewQuoteMetrics(prometheus.NewRegistry())
}
