// Package ratelimit limita requisições da API pública por cliente.
//
// A contagem principal é uma janela fixa no Redis (INCR + EXPIRE), compartilhada
// entre réplicas. Se o Redis falhar, cada processo passa a usar um token bucket
// local por cliente até o Redis voltar.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
)

type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

const maxLocalBuckets = 10000

type Limiter struct {
	rdb *redis.Client
	log *zap.Logger
	now func() time.Time

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func New(rdb *redis.Client, log *zap.Logger) *Limiter {
	return &Limiter{rdb: rdb, log: log, now: time.Now, local: make(map[string]*rate.Limiter)}
}

func windowKey(rule Rule, client string, idx int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", rule.Name, client, idx)
}

// Allow conta uma requisição do cliente na regra
func (l *Limiter) Allow(ctx context.Context, rule Rule, client string) Result {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Result{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}
	}

	now := l.now()
	win := int64(rule.Window / time.Second)
	if win < 1 {
		win = 1
	}
	idx := now.Unix() / win
	reset := time.Unix((idx+1)*win, 0)

	if l.rdb != nil {
		key := windowKey(rule, client, idx)
		var incr *redis.IntCmd
		_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			p.Expire(ctx, key, time.Duration(win)*time.Second)
			return nil
		})
		if err == nil {
			count := int(incr.Val())
			remaining := rule.Limit - count
			if remaining < 0 {
				remaining = 0
			}
			return Result{Allowed: count <= rule.Limit, Limit: rule.Limit, Remaining: remaining, Reset: reset}
		}
		l.log.Warn("rate limit redis unavailable, using local limiter", zap.Error(err))
	}

	return l.allowLocal(rule, client, now, reset)
}

func (l *Limiter) allowLocal(rule Rule, client string, now, reset time.Time) Result {
	key := rule.Name + ":" + client

	l.mu.Lock()
	lim, ok := l.local[key]
	if !ok {
		if len(l.local) >= maxLocalBuckets {
			l.local = make(map[string]*rate.Limiter)
		}
		every := rule.Window / time.Duration(rule.Limit)
		lim = rate.NewLimiter(rate.Every(every), rule.Limit)
		l.local[key] = lim
	}
	l.mu.Unlock()

	allowed := lim.AllowN(now, 1)
	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: allowed, Limit: rule.Limit, Remaining: remaining, Reset: reset}
}

// ClientKey identifica o cliente: usuário autenticado, senão o IP
func ClientKey(r *http.Request) string {
	if u, ok := auth.UserFrom(r.Context()); ok {
		return "user:" + u.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware aplica a regra e devolve os headers X-RateLimit-*
func (l *Limiter) Middleware(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Allow(r.Context(), rule, ClientKey(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Reset.IsZero() {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
			}

			if !res.Allowed {
				metrics.RateLimited.WithLabelValues(rule.Name).Inc()
				retry := int(res.Reset.Sub(l.now()).Seconds() + 0.999)
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
