// Package sampler grava periodicamente um retrato do processo do arb-api
// (heap, goroutines, cache de odds, cota da API e oportunidades atuais) na
// tabela system_metrics, que alimenta o dashboard de administração.
package sampler

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/fetchcache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
)

type Store interface {
	InsertSystemMetric(ctx context.Context, m repo.SystemMetric) error
}

// Source é o que o sampler lê do cliente de odds com cache
type Source interface {
	Stats() fetchcache.Stats
	Quota() oddsapi.Quota
}

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type Sampler struct {
	Store Store
	Odds  Source
	Opps  Counter
	Log   *zap.Logger

	now     func() time.Time
	runtime func() (heapAlloc uint64, goroutines int)
}

func New(store Store, odds Source, opps Counter, log *zap.Logger) *Sampler {
	return &Sampler{Store: store, Odds: odds, Opps: opps, Log: log, now: time.Now, runtime: readRuntime}
}

func readRuntime() (uint64, int) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, runtime.NumGoroutine()
}

// Sample monta a amostra atual; a contagem de oportunidades é best-effort
func (s *Sampler) Sample(ctx context.Context) repo.SystemMetric {
	heap, goroutines := s.runtime()
	st := s.Odds.Stats()
	m := repo.SystemMetric{
		SampledAt:      s.now().UTC(),
		HeapAllocBytes: int64(heap),
		Goroutines:     goroutines,
		CacheEntries:   st.Entries,
		CacheBytes:     st.Bytes,
		CacheHits:      st.Hits,
		CacheMisses:    st.Misses,
		CacheCoalesced: st.Coalesced,
		CacheEvictions: st.Evictions,
	}
	if q := s.Odds.Quota(); q.Known {
		remaining := q.Remaining
		m.QuotaRemaining = &remaining
	}
	if s.Opps != nil {
		n, err := s.Opps.Count(ctx)
		if err != nil {
			s.Log.Warn("count opportunities", zap.Error(err))
		}
		m.OpportunitiesCurrent = n
	}
	return m
}

// Run grava uma amostra a cada interval até o ctx ser cancelado
func (s *Sampler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := s.Store.InsertSystemMetric(ctx, s.Sample(ctx)); err != nil && ctx.Err() == nil {
			s.Log.Warn("insert system metric", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
