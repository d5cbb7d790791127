package oddsapi

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/cache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/config"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/fetchcache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/retry"
)

// FromConfig monta o cliente com cache usado pelos serviços: cliente HTTP,
// fetchcache local e, se rdb != nil, o L2 no Redis. O fetchcache é devolvido
// para o main iniciar a limpeza periódica e exportar métricas.
func FromConfig(cfg config.Config, rdb *redis.Client, log *zap.Logger) (*CachedClient, *fetchcache.Cache) {
	api := New(Options{
		BaseURL:   cfg.OddsAPIBaseURL,
		APIKey:    cfg.OddsAPIKey,
		Timeout:   cfg.OddsAPITimeout,
		RateLimit: cfg.OddsAPIRateLimit,
		Burst:     2,
	}, log)

	policy := retry.NewPolicy(cfg.Cache.RetryAttempts, cfg.Cache.RetryDelay)
	policy.Retryable = Retryable
	l1 := fetchcache.New(fetchcache.Options{
		TTL:          cfg.Cache.TTL,
		MaxEntries:   cfg.Cache.MaxEntries,
		MaxBytes:     cfg.Cache.MaxBytes,
		StaleGrace:   cfg.Cache.StaleGrace,
		HeapLimit:    cfg.Cache.HeapLimitMB << 20,
		FetchTimeout: cfg.Cache.FetchTimeout,
		Retry:        policy,
	})

	var l2 *cache.Store
	if rdb != nil {
		l2 = cache.NewStore(rdb)
	}
	return NewCachedClient(api, l1, l2, cfg.Cache.TTL, cfg.Cache.RedisTTL, log), l1
}
