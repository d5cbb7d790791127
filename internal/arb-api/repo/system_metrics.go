package repo

import (
	"context"
	"database/sql"
	"time"
)

// SystemMetric é uma amostra periódica do processo do arb-api
type SystemMetric struct {
	SampledAt            time.Time `json:"sampled_at"`
	HeapAllocBytes       int64     `json:"heap_alloc_bytes"`
	Goroutines           int       `json:"goroutines"`
	CacheEntries         int       `json:"cache_entries"`
	CacheBytes           int64     `json:"cache_bytes"`
	CacheHits            int64     `json:"cache_hits"`
	CacheMisses          int64     `json:"cache_misses"`
	CacheCoalesced       int64     `json:"cache_coalesced"`
	CacheEvictions       int64     `json:"cache_evictions"`
	QuotaRemaining       *int      `json:"quota_remaining,omitempty"`
	OpportunitiesCurrent int       `json:"opportunities_current"`
}

func (r *ReadRepo) InsertSystemMetric(ctx context.Context, m SystemMetric) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO system_metrics
		  (sampled_at, heap_alloc_bytes, goroutines, cache_entries, cache_bytes, cache_hits, cache_misses,
		   cache_coalesced, cache_evictions, quota_remaining, opportunities_current)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.SampledAt, m.HeapAllocBytes, m.Goroutines, m.CacheEntries, m.CacheBytes,
		m.CacheHits, m.CacheMisses, m.CacheCoalesced, m.CacheEvictions,
		m.QuotaRemaining, m.OpportunitiesCurrent)
	return err
}

// RecentSystemMetrics devolve as amostras mais novas primeiro
func (r *ReadRepo) RecentSystemMetrics(ctx context.Context, limit int) ([]SystemMetric, error) {
	if limit <= 0 || limit > 1440 {
		limit = 60
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT sampled_at, heap_alloc_bytes, goroutines, cache_entries, cache_bytes, cache_hits, cache_misses,
		       cache_coalesced, cache_evictions, quota_remaining, opportunities_current
		FROM system_metrics
		ORDER BY sampled_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SystemMetric{}
	for rows.Next() {
		var (
			m     SystemMetric
			quota sql.NullInt64
		)
		if err := rows.Scan(&m.SampledAt, &m.HeapAllocBytes, &m.Goroutines, &m.CacheEntries, &m.CacheBytes,
			&m.CacheHits, &m.CacheMisses, &m.CacheCoalesced, &m.CacheEvictions, &quota, &m.OpportunitiesCurrent); err != nil {
			return nil, err
		}
		if quota.Valid {
			q := int(quota.Int64)
			m.QuotaRemaining = &q
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
