package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	sharedcache "github.com/radieske/sports-arbitrage-platform/internal/shared/cache"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// RedisCache mantém as oportunidades atuais no Redis
// TTL: tempo sem ser redetectada até a oportunidade sair do conjunto atual
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
	now    func() time.Time
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl, now: time.Now}
}

// SetCurrent grava a oportunidade na chave própria (com TTL) e no hash do esporte
func (r *RedisCache) SetCurrent(ctx context.Context, o events.Opportunity) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	hash := sharedcache.OppsCurrentKey(o.SportKey)
	_, err = r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sharedcache.OppKey(o.ID), b, r.TTL)
		p.HSet(ctx, hash, o.ID, b)
		p.Expire(ctx, hash, r.TTL)
		p.SAdd(ctx, sharedcache.OppsSportsKey, o.SportKey)
		return nil
	})
	return err
}

// Prune remove dos hashes as oportunidades não redetectadas dentro do TTL
func (r *RedisCache) Prune(ctx context.Context) (int, error) {
	sports, err := r.Client.SMembers(ctx, sharedcache.OppsSportsKey).Result()
	if err != nil {
		return 0, err
	}
	cutoff := r.now().Add(-r.TTL)
	removed := 0
	for _, sport := range sports {
		hash := sharedcache.OppsCurrentKey(sport)
		all, err := r.Client.HGetAll(ctx, hash).Result()
		if err != nil {
			return removed, err
		}
		if len(all) == 0 {
			r.Client.SRem(ctx, sharedcache.OppsSportsKey, sport)
			continue
		}
		var stale []string
		for id, raw := range all {
			var o events.Opportunity
			if err := json.Unmarshal([]byte(raw), &o); err != nil || o.DetectedAt.Before(cutoff) {
				stale = append(stale, id)
			}
		}
		if len(stale) > 0 {
			n, err := r.Client.HDel(ctx, hash, stale...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
	}
	return removed, nil
}
