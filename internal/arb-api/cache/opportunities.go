package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/repo"
	sharedcache "github.com/radieske/sports-arbitrage-platform/internal/shared/cache"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// Fallback é a leitura no Postgres usada quando o Redis falha ou não tem o dado
type Fallback interface {
	GetOpportunity(ctx context.Context, id string, since time.Time) (events.Opportunity, error)
	ListOpportunities(ctx context.Context, sport string, since time.Time, limit int) ([]events.Opportunity, error)
}

// Opportunities lê o conjunto atual mantido pelo opportunity-processor
type Opportunities struct {
	R      *redis.Client
	DB     Fallback
	MaxAge time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewOpportunities(r *redis.Client, db Fallback, maxAge time.Duration, log *zap.Logger) *Opportunities {
	return &Opportunities{R: r, DB: db, MaxAge: maxAge, log: log, now: time.Now}
}

func (c *Opportunities) fresh(o events.Opportunity) bool {
	return !o.DetectedAt.Before(c.now().Add(-c.MaxAge))
}

// Get procura pelo id no Redis e depois no Postgres
func (c *Opportunities) Get(ctx context.Context, id string) (events.Opportunity, bool, error) {
	b, err := c.R.Get(ctx, sharedcache.OppKey(id)).Bytes()
	switch {
	case err == nil:
		var o events.Opportunity
		if err := json.Unmarshal(b, &o); err == nil && c.fresh(o) {
			return o, true, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("redis get opportunity", zap.String("id", id), zap.Error(err))
	}

	if c.DB == nil {
		return events.Opportunity{}, false, nil
	}
	o, err := c.DB.GetOpportunity(ctx, id, c.now().Add(-c.MaxAge))
	if errors.Is(err, repo.ErrNotFound) {
		return events.Opportunity{}, false, nil
	}
	if err != nil {
		return events.Opportunity{}, false, err
	}
	return o, true, nil
}

// List devolve as oportunidades atuais (de um esporte ou todas), maior lucro primeiro
func (c *Opportunities) List(ctx context.Context, sport string, limit int) ([]events.Opportunity, error) {
	out, err := c.fromRedis(ctx, sport)
	if err != nil {
		c.log.Warn("redis list opportunities, falling back to postgres", zap.Error(err))
		if c.DB == nil {
			return nil, err
		}
		return c.DB.ListOpportunities(ctx, sport, c.now().Add(-c.MaxAge), limit)
	}
	sortOpportunities(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count é usado pelo dashboard e pelo sampler
func (c *Opportunities) Count(ctx context.Context) (int, error) {
	out, err := c.fromRedis(ctx, "")
	return len(out), err
}

func (c *Opportunities) fromRedis(ctx context.Context, sport string) ([]events.Opportunity, error) {
	sports := []string{sport}
	if sport == "" {
		var err error
		if sports, err = c.R.SMembers(ctx, sharedcache.OppsSportsKey).Result(); err != nil {
			return nil, err
		}
	}
	out := []events.Opportunity{}
	for _, s := range sports {
		all, err := c.R.HGetAll(ctx, sharedcache.OppsCurrentKey(s)).Result()
		if err != nil {
			return nil, err
		}
		for _, raw := range all {
			var o events.Opportunity
			if err := json.Unmarshal([]byte(raw), &o); err != nil {
				continue
			}
			if c.fresh(o) {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func sortOpportunities(out []events.Opportunity) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProfitPercent != out[j].ProfitPercent {
			return out[i].ProfitPercent > out[j].ProfitPercent
		}
		if !out[i].CommenceTime.Equal(out[j].CommenceTime) {
			return out[i].CommenceTime.Before(out[j].CommenceTime)
		}
		return out[i].ID < out[j].ID
	})
}
