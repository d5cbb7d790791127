// Package fetchcache é o cache em memória usado na frente da API de odds.
//
// Cada chave guarda o corpo bruto da resposta com TTL. Requisições concorrentes
// para a mesma chave compartilham uma única busca (singleflight), a busca roda
// com retry/backoff e, se falhar, uma entrada expirada ainda dentro de
// StaleGrace é devolvida. O tamanho é limitado por número de entradas, bytes e
// pela pressão de heap do processo; a remoção segue a ordem LRU.
package fetchcache

import (
	"container/list"
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/retry"
)

// Fetcher busca o valor na origem
type Fetcher func(ctx context.Context) ([]byte, error)

// Options configura o cache. Valores zero desativam o limite correspondente.
type Options struct {
	TTL          time.Duration // TTL padrão quando GetOrFetch recebe ttl <= 0
	MaxEntries   int
	MaxBytes     int64
	StaleGrace   time.Duration // janela após expirar em que o valor serve de fallback
	HeapLimit    uint64        // bytes de heap acima dos quais Sweep descarta metade do cache
	FetchTimeout time.Duration // limite da busca compartilhada
	Retry        retry.Policy

	Now       func() time.Time
	HeapAlloc func() uint64
}

// Stats é um retrato dos contadores do cache
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Coalesced   int64 `json:"coalesced"`
	StaleServed int64 `json:"stale_served"`
	Evictions   int64 `json:"evictions"`
	Entries     int   `json:"entries"`
	Bytes       int64 `json:"bytes"`
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	elem      *list.Element
}

// Cache é seguro para uso concorrente
type Cache struct {
	opts Options

	mu    sync.Mutex
	items map[string]*entry
	lru   *list.List // frente = uso mais recente
	bytes int64
	stats Stats

	group singleflight.Group
}

func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HeapAlloc == nil {
		opts.HeapAlloc = heapAlloc
	}
	return &Cache{
		opts:  opts,
		items: make(map[string]*entry),
		lru:   list.New(),
	}
}

// Get devolve apenas valores ainda válidos. O slice retornado não deve ser alterado.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	now := c.opts.Now()
	if !now.Before(e.expiresAt) {
		if !now.Before(e.expiresAt.Add(c.opts.StaleGrace)) {
			c.removeLocked(e)
		}
		c.stats.Misses++
		return nil, false
	}
	c.lru.MoveToFront(e.elem)
	c.stats.Hits++
	return e.value, true
}

// Set grava value com ttl (<= 0 usa o TTL padrão)
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.TTL
	}
	size := int64(len(value))
	if c.opts.MaxBytes > 0 && size > c.opts.MaxBytes {
		// não cabe: a versão anterior também não vale mais
		c.Invalidate(key)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.items[key]; ok {
		c.removeLocked(old)
	}
	e := &entry{key: key, value: value, expiresAt: c.opts.Now().Add(ttl)}
	e.elem = c.lru.PushFront(e)
	c.items[key] = e
	c.bytes += size

	c.enforceLimitsLocked()
}

// GetOrFetch devolve o valor em cache ou executa fetch uma única vez por chave,
// mesmo com vários chamadores simultâneos.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) ([]byte, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// a busca não herda o cancelamento de quem chegou primeiro
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
		defer cancel()

		var out []byte
		err := c.opts.Retry.Do(fctx, func(ctx context.Context) error {
			b, err := fetch(ctx)
			if err != nil {
				return err
			}
			out = b
			return nil
		})
		if err != nil {
			return nil, err
		}
		c.Set(key, out, ttl)
		return out, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.mu.Lock()
			c.stats.Coalesced++
			c.mu.Unlock()
		}
		if res.Err != nil {
			if v, ok := c.stale(key); ok {
				return v, nil
			}
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// stale devolve uma entrada expirada ainda dentro de StaleGrace
func (c *Cache) stale(key string) ([]byte, bool) {
	if c.opts.StaleGrace <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || !c.opts.Now().Before(e.expiresAt.Add(c.opts.StaleGrace)) {
		return nil, false
	}
	c.stats.StaleServed++
	return e.value, true
}

func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.removeLocked(e)
	}
}

// InvalidatePrefix remove todas as chaves com o prefixo e devolve quantas saíram
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.items {
		if strings.HasPrefix(k, prefix) {
			c.removeLocked(e)
			n++
		}
	}
	return n
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry)
	c.lru.Init()
	c.bytes = 0
}

// Sweep remove entradas vencidas (além de StaleGrace), aplica os limites e,
// sob pressão de heap, descarta a metade menos usada. Retorna o total removido.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.opts.Now()
	for _, e := range c.items {
		if !now.Before(e.expiresAt.Add(c.opts.StaleGrace)) {
			c.removeLocked(e)
			removed++
		}
	}
	c.stats.Evictions += int64(removed)

	removed += c.enforceLimitsLocked()

	if c.opts.HeapLimit > 0 && c.lru.Len() > 0 && c.opts.HeapAlloc() > c.opts.HeapLimit {
		target := c.lru.Len() / 2
		if target == 0 {
			target = 1
		}
		removed += c.evictOldestLocked(target)
	}
	return removed
}

// Start roda Sweep periodicamente até o contexto ser cancelado
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.items)
	s.Bytes = c.bytes
	return s
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) enforceLimitsLocked() int {
	removed := 0
	for c.lru.Len() > 0 &&
		((c.opts.MaxEntries > 0 && c.lru.Len() > c.opts.MaxEntries) ||
			(c.opts.MaxBytes > 0 && c.bytes > c.opts.MaxBytes)) {
		removed += c.evictOldestLocked(1)
	}
	return removed
}

func (c *Cache) evictOldestLocked(n int) int {
	removed := 0
	for removed < n {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.removeLocked(back.Value.(*entry))
		removed++
	}
	c.stats.Evictions += int64(removed)
	return removed
}

func (c *Cache) removeLocked(e *entry) {
	c.lru.Remove(e.elem)
	delete(c.items, e.key)
	c.bytes -= int64(len(e.value))
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}
