package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/arbitrage"
	"github.com/radieske/sports-arbitrage-platform/internal/settings"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// OddsSource é o cliente com cache da API de odds
type OddsSource interface {
	Odds(ctx context.Context, sport string, q oddsapi.OddsQuery) ([]oddsapi.Event, error)
	Quota() oddsapi.Quota
}

type SettingsSource interface {
	Load(ctx context.Context) settings.AppSettings
}

type Publisher interface {
	PublishAll(ctx context.Context, opps []events.Opportunity) (int, error)
}

// CycleResult resume uma rodada de polling
type CycleResult struct {
	Sports        int
	Events        int
	Opportunities int
	Published     int
	Skipped       string // motivo quando a rodada foi interrompida
}

// Poller consulta as odds de cada esporte configurado, detecta arbitragens
// e publica as oportunidades no Kafka. Callbacks alimentam as métricas.
type Poller struct {
	Log       *zap.Logger
	Odds      OddsSource
	Settings  SettingsSource
	Publisher Publisher
	MinQuota  int // abaixo disso a rodada é pulada para preservar a cota

	OnCycle    func(time.Duration, CycleResult)
	OnDetected func(events.Opportunity)
	OnError    func(stage string)
}

// Run executa uma rodada e espera PollInterval, relido a cada ciclo
func (p *Poller) Run(ctx context.Context) {
	for {
		st := p.Settings.Load(ctx)
		if st.PollingEnabled {
			p.Cycle(ctx, st)
		} else {
			p.Log.Debug("polling disabled by settings")
		}

		interval := st.PollInterval
		if interval <= 0 {
			interval = time.Minute
		}
		select {
		case <-ctx.Done():
			p.Log.Info("poller stopped")
			return
		case <-time.After(interval):
		}
	}
}

func (p *Poller) quotaLow() bool {
	q := p.Odds.Quota()
	return q.Known && q.Remaining < p.MinQuota
}

// Cycle consulta todos os esportes de st; erro num esporte não interrompe os outros
func (p *Poller) Cycle(ctx context.Context, st settings.AppSettings) CycleResult {
	start := time.Now()
	var res CycleResult
	defer func() {
		if p.OnCycle != nil {
			p.OnCycle(time.Since(start), res)
		}
	}()

	det := arbitrage.NewDetector(arbitrage.Config{
		MinProfitPercent: st.MinProfitPercent,
		MaxProfitPercent: st.MaxProfitPercent,
		TotalStake:       decimal.NewFromFloat(st.DefaultStake),
		Bookmakers:       st.Bookmakers,
		Markets:          st.Markets,
	})
	q := oddsapi.OddsQuery{Regions: st.Regions, Markets: st.Markets, Bookmakers: st.Bookmakers}

	var found []events.Opportunity
	for _, sport := range st.Sports {
		if ctx.Err() != nil {
			break
		}
		if p.quotaLow() {
			res.Skipped = "quota"
			p.Log.Warn("odds api quota below reserve, skipping",
				zap.Int("remaining", p.Odds.Quota().Remaining), zap.Int("reserve", p.MinQuota))
			break
		}

		evs, err := p.Odds.Odds(ctx, sport, q)
		if err != nil {
			p.fail("fetch")
			p.Log.Warn("fetch odds", zap.String("sport", sport), zap.Error(err))
			if errors.Is(err, oddsapi.ErrQuotaExceeded) || errors.Is(err, oddsapi.ErrUnauthorized) {
				res.Skipped = "upstream"
				break
			}
			continue
		}
		res.Sports++
		res.Events += len(evs)

		opps := det.Detect(evs)
		for _, o := range opps {
			if p.OnDetected != nil {
				p.OnDetected(o)
			}
		}
		found = append(found, opps...)
	}
	res.Opportunities = len(found)

	if len(found) > 0 {
		n, err := p.Publisher.PublishAll(ctx, found)
		if err != nil {
			p.fail("publish")
		}
		res.Published = n
	}

	p.Log.Info("poll cycle done",
		zap.Int("sports", res.Sports),
		zap.Int("events", res.Events),
		zap.Int("opportunities", res.Opportunities),
		zap.Int("published", res.Published),
		zap.Duration("took", time.Since(start)),
	)
	return res
}

func (p *Poller) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
