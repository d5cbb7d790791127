// Package oddsapi é o cliente da API de odds (The Odds API v4 ou o simulador local).
//
// Toda requisição passa por um rate limiter local, tem retry automático em
// falhas de rede e 5xx e atualiza a cota informada nos headers da resposta.
package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64 // requisições por segundo; <= 0 desliga o limiter
	Burst      int
	RetryCount int
	RetryWait  time.Duration
}

type Client struct {
	http    *resty.Client
	apiKey  string
	limiter *rate.Limiter
	log     *zap.Logger

	mu    sync.RWMutex
	quota Quota
}

func New(opts Options, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r != nil && r.Request != nil && r.Request.Context().Err() != nil {
				return false
			}
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst)
	}

	return &Client{
		http:    httpClient,
		apiKey:  opts.APIKey,
		limiter: limiter,
		log:     log,
	}
}

// Sports lista os esportes disponíveis
func (c *Client) Sports(ctx context.Context) ([]Sport, error) {
	body, err := c.get(ctx, "sports", "/v4/sports", nil)
	if err != nil {
		return nil, err
	}
	var out []Sport
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode sports: %w", err)
	}
	return out, nil
}

// OddsRaw devolve o corpo da resposta sem decodificar, usado pelo proxy e pelo cache
func (c *Client) OddsRaw(ctx context.Context, sport string, q OddsQuery) ([]byte, error) {
	params := map[string]string{
		"oddsFormat": "decimal",
		"dateFormat": "iso",
	}
	if len(q.Regions) > 0 {
		params["regions"] = strings.Join(q.Regions, ",")
	}
	if len(q.Markets) > 0 {
		params["markets"] = strings.Join(q.Markets, ",")
	}
	if len(q.Bookmakers) > 0 {
		params["bookmakers"] = strings.Join(q.Bookmakers, ",")
	}
	if len(q.EventIDs) > 0 {
		params["eventIds"] = strings.Join(q.EventIDs, ",")
	}
	return c.get(ctx, "odds", "/v4/sports/"+sport+"/odds", params)
}

func (c *Client) Odds(ctx context.Context, sport string, q OddsQuery) ([]Event, error) {
	body, err := c.OddsRaw(ctx, sport, q)
	if err != nil {
		return nil, err
	}
	return DecodeEvents(body)
}

// Scores busca placares dos últimos daysFrom dias (1 a 3), opcionalmente filtrando eventos
func (c *Client) Scores(ctx context.Context, sport string, daysFrom int, eventIDs []string) ([]ScoreEvent, error) {
	params := map[string]string{"dateFormat": "iso"}
	if daysFrom > 0 {
		if daysFrom > 3 {
			daysFrom = 3
		}
		params["daysFrom"] = strconv.Itoa(daysFrom)
	}
	if len(eventIDs) > 0 {
		params["eventIds"] = strings.Join(eventIDs, ",")
	}
	body, err := c.get(ctx, "scores", "/v4/sports/"+sport+"/scores", params)
	if err != nil {
		return nil, err
	}
	var out []ScoreEvent
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return out, nil
}

// Quota devolve a cota vista na última resposta
func (c *Client) Quota() Quota {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quota
}

func DecodeEvents(body []byte) ([]Event, error) {
	var out []Event
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode odds: %w", err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("apiKey", c.apiKey).
		Get(path)
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("odds api %s: %w", endpoint, err)
	}

	metrics.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode())).Inc()
	c.updateQuota(resp.Header())

	if resp.StatusCode() != http.StatusOK {
		c.log.Warn("odds api non-200",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode()),
		)
		return nil, statusError(resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

func (c *Client) updateQuota(h http.Header) {
	remaining, errR := headerInt(h, "x-requests-remaining")
	used, errU := headerInt(h, "x-requests-used")
	if errR != nil && errU != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if errR == nil {
		c.quota.Remaining = remaining
		metrics.QuotaRemaining.Set(float64(remaining))
	}
	if errU == nil {
		c.quota.Used = used
	}
	c.quota.Known = true
	c.quota.UpdatedAt = time.Now()
}

// a API às vezes manda a cota como "480.0"
func headerInt(h http.Header, key string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(h.Get(key)), 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
