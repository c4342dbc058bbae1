package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's Prometheus collectors on a private registry,
// so /metrics exposes only fare metrics.
type Registry struct {
	reg               *prometheus.Registry
	Searches          *prometheus.CounterVec
	QuotesPriced      *prometheus.CounterVec
	OffersApplied     *prometheus.CounterVec
	ProviderFallbacks *prometheus.CounterVec
	OffersUpserted    prometheus.Counter
	SearchLatencySec  prometheus.Histogram
}

// NewRegistry creates and registers every collector.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	searches := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fare_searches_total"}, []string{"trip_type", "outcome"})
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fare_quotes_priced_total"}, []string{"portal"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fare_offers_applied_total"}, []string{"portal"})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fare_provider_fallbacks_total"}, []string{"reason"})
	upserted := prometheus.NewCounter(prometheus.CounterOpts{Name: "fare_offers_upserted_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fare_search_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(searches, quotes, applied, fallbacks, upserted, latency)
	return &Registry{
		reg:               r,
		Searches:          searches,
		QuotesPriced:      quotes,
		OffersApplied:     applied,
		ProviderFallbacks: fallbacks,
		OffersUpserted:    upserted,
		SearchLatencySec:  latency,
	}
}

// ProviderFallback counts a search served by synthetic quotes.
func (r *Registry) ProviderFallback(reason string) {
	r.ProviderFallbacks.WithLabelValues(reason).Inc()
}

// ObserveSearch records one finished search.
func (r *Registry) ObserveSearch(tripType, outcome string, took time.Duration) {
	r.Searches.WithLabelValues(tripType, outcome).Inc()
	r.SearchLatencySec.Observe(took.Seconds())
}

// ObserveQuote records one priced portal quote.
func (r *Registry) ObserveQuote(portal string, discounted bool) {
	r.QuotesPriced.WithLabelValues(portal).Inc()
	if discounted {
		r.OffersApplied.WithLabelValues(portal).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
