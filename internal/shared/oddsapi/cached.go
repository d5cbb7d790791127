package oddsapi

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/cache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/fetchcache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
)

// Upstream é o que o CachedClient precisa do cliente real
type Upstream interface {
	Sports(ctx context.Context) ([]Sport, error)
	OddsRaw(ctx context.Context, sport string, q OddsQuery) ([]byte, error)
	Scores(ctx context.Context, sport string, daysFrom int, eventIDs []string) ([]ScoreEvent, error)
	Quota() Quota
}

const (
	sportsTTL = time.Hour
	scoresTTL = time.Minute
)

// CachedClient coloca o fetchcache (L1, por processo) e o Redis (L2,
// compartilhado entre processos) na frente da API de odds.
type CachedClient struct {
	api   Upstream
	l1    *fetchcache.Cache
	l2    *cache.Store // opcional
	ttl   time.Duration
	l2TTL time.Duration
	log   *zap.Logger
}

func NewCachedClient(api Upstream, l1 *fetchcache.Cache, l2 *cache.Store, ttl, l2TTL time.Duration, log *zap.Logger) *CachedClient {
	return &CachedClient{api: api, l1: l1, l2: l2, ttl: ttl, l2TTL: l2TTL, log: log}
}

// OddsKey monta a chave de cache: odds:{sport}:{regions}:{markets}:{bookmakers}
// com as listas ordenadas, para que filtros equivalentes caiam na mesma chave.
func OddsKey(sport string, q OddsQuery) string {
	key := "odds:" + sport + ":" + joinSorted(q.Regions) + ":" + joinSorted(q.Markets) + ":" + joinSorted(q.Bookmakers)
	if len(q.EventIDs) > 0 {
		key += ":" + joinSorted(q.EventIDs)
	}
	return key
}

func joinSorted(in []string) string {
	s := append([]string(nil), in...)
	sort.Strings(s)
	return strings.Join(s, ",")
}

func (c *CachedClient) OddsRaw(ctx context.Context, sport string, q OddsQuery) ([]byte, error) {
	key := OddsKey(sport, q)
	return c.l1.GetOrFetch(ctx, key, c.ttl, func(ctx context.Context) ([]byte, error) {
		if b, ok := c.fromL2(ctx, key); ok {
			return b, nil
		}
		b, err := c.api.OddsRaw(ctx, sport, q)
		if err != nil {
			return nil, err
		}
		c.toL2(ctx, key, b)
		return b, nil
	})
}

func (c *CachedClient) Odds(ctx context.Context, sport string, q OddsQuery) ([]Event, error) {
	b, err := c.OddsRaw(ctx, sport, q)
	if err != nil {
		return nil, err
	}
	return DecodeEvents(b)
}

func (c *CachedClient) Sports(ctx context.Context) ([]Sport, error) {
	var out []Sport
	b, err := c.l1.GetOrFetch(ctx, "sports", sportsTTL, func(ctx context.Context) ([]byte, error) {
		sports, err := c.api.Sports(ctx)
		if err != nil {
			return nil, err
		}
		return marshal(sports)
	})
	if err != nil {
		return nil, err
	}
	return out, unmarshal(b, &out)
}

func (c *CachedClient) Scores(ctx context.Context, sport string, daysFrom int, eventIDs []string) ([]ScoreEvent, error) {
	key := "scores:" + sport + ":" + strconv.Itoa(daysFrom) + ":" + joinSorted(eventIDs)
	var out []ScoreEvent
	b, err := c.l1.GetOrFetch(ctx, key, scoresTTL, func(ctx context.Context) ([]byte, error) {
		scores, err := c.api.Scores(ctx, sport, daysFrom, eventIDs)
		if err != nil {
			return nil, err
		}
		return marshal(scores)
	})
	if err != nil {
		return nil, err
	}
	return out, unmarshal(b, &out)
}

func (c *CachedClient) Quota() Quota { return c.api.Quota() }

func (c *CachedClient) Stats() fetchcache.Stats { return c.l1.Stats() }

// Invalidate limpa as odds de um esporte (ou todas, com sport vazio) nas duas camadas
func (c *CachedClient) Invalidate(ctx context.Context, sport string) (int, error) {
	prefix := "odds:"
	if sport != "" {
		prefix += sport + ":"
	}
	n := c.l1.InvalidatePrefix(prefix)
	if c.l2 == nil {
		return n, nil
	}
	m, err := c.l2.DelPrefix(ctx, prefix)
	return n + m, err
}

func (c *CachedClient) fromL2(ctx context.Context, key string) ([]byte, bool) {
	if c.l2 == nil {
		return nil, false
	}
	b, ok, err := c.l2.GetBytes(ctx, key)
	if err != nil {
		// Redis fora não impede a busca na origem
		c.log.Warn("l2 cache get failed", zap.String("key", key), zap.Error(err))
		metrics.CacheRequests.WithLabelValues("l2", "error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheRequests.WithLabelValues("l2", "miss").Inc()
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues("l2", "hit").Inc()
	return b, true
}

func (c *CachedClient) toL2(ctx context.Context, key string, b []byte) {
	if c.l2 == nil {
		return
	}
	if err := c.l2.SetBytes(ctx, key, b, c.l2TTL); err != nil {
		c.log.Warn("l2 cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func marshal(v any) ([]byte, error) { return json.Marshal(v) }

func unmarshal(b []byte, dst any) error { return json.Unmarshal(b, dst) }
