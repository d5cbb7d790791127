package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/fetchcache"
)

// Coletores compartilhados entre os binários. Cada processo só exporta
// os que de fato usa, os demais ficam zerados.
var (
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_odds_cache_requests_total",
		Help: "consultas ao cache de odds no Redis por resultado",
	}, []string{"layer", "result"})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_odds_api_requests_total",
		Help: "requisições à API de odds por endpoint e status",
	}, []string{"endpoint", "status"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arb_odds_api_request_duration_seconds",
		Help:    "latência das requisições à API de odds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	QuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_odds_api_quota_remaining",
		Help: "requisições restantes na cota da API de odds",
	})

	OpportunitiesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_opportunities_detected_total",
		Help: "oportunidades de arbitragem detectadas por esporte e mercado",
	}, []string{"sport", "market"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_rate_limited_requests_total",
		Help: "requisições bloqueadas pelo rate limit por regra",
	}, []string{"rule"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_http_requests_total",
		Help: "requisições HTTP da API pública por rota e status",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arb_http_request_duration_seconds",
		Help:    "latência das requisições HTTP da API pública",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// CacheCollector exporta os contadores do fetchcache lidos no momento do scrape
type CacheCollector struct {
	stats func() fetchcache.Stats

	requests  *prometheus.Desc
	evictions *prometheus.Desc
	entries   *prometheus.Desc
	bytes     *prometheus.Desc
}

func NewCacheCollector(stats func() fetchcache.Stats) *CacheCollector {
	return &CacheCollector{
		stats:     stats,
		requests:  prometheus.NewDesc("arb_fetchcache_requests_total", "consultas ao cache em memória por resultado", []string{"result"}, nil),
		evictions: prometheus.NewDesc("arb_fetchcache_evictions_total", "entradas removidas do cache em memória", nil, nil),
		entries:   prometheus.NewDesc("arb_fetchcache_entries", "entradas no cache em memória", nil, nil),
		bytes:     prometheus.NewDesc("arb_fetchcache_bytes", "bytes armazenados no cache em memória", nil, nil),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.evictions
	ch <- c.entries
	ch <- c.bytes
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.Hits), "hit")
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.Misses), "miss")
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.Coalesced), "coalesced")
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.StaleServed), "stale")
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(s.Bytes))
}
