// Package arbitrage encontra combinações de apostas entre casas diferentes cuja
// soma das probabilidades implícitas fica abaixo de 1 (lucro garantido).
//
// Mercados de dois resultados (moneyline, spread, total) usam busca por pares:
// cada resultado de uma casa contra o resultado complementar de outra casa.
// Mercados com três ou mais resultados (futebol com empate) usam a melhor
// odd de cada resultado entre todas as casas.
package arbitrage

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

type Config struct {
	MinProfitPercent float64
	MaxProfitPercent float64 // acima disso a linha provavelmente está errada ou velha; <= 0 desliga
	TotalStake       decimal.Decimal
	Bookmakers       []string // allow-list opcional
	Markets          []string // vazio = h2h
}

// Price é uma odd de uma casa para um resultado
type Price struct {
	Bookmaker      string
	BookmakerTitle string
	Outcome        string
	Decimal        float64
	Point          *float64
	LastUpdate     time.Time
}

type Detector struct {
	cfg   Config
	allow map[string]bool
	now   func() time.Time
}

func NewDetector(cfg Config) *Detector {
	if len(cfg.Markets) == 0 {
		cfg.Markets = []string{"h2h"}
	}
	if !cfg.TotalStake.IsPositive() {
		cfg.TotalStake = decimal.NewFromInt(100)
	}
	d := &Detector{cfg: cfg, now: time.Now}
	if len(cfg.Bookmakers) > 0 {
		d.allow = make(map[string]bool, len(cfg.Bookmakers))
		for _, b := range cfg.Bookmakers {
			d.allow[b] = true
		}
	}
	return d
}

func (d *Detector) Config() Config { return d.cfg }

// Detect percorre todos os eventos e mercados configurados. O resultado vem
// ordenado por lucro (maior primeiro) e depois pelo horário do jogo.
func (d *Detector) Detect(evs []oddsapi.Event) []events.Opportunity {
	var out []events.Opportunity
	for _, ev := range evs {
		for _, market := range d.cfg.Markets {
			out = append(out, d.detectMarket(ev, market)...)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProfitPercent != out[j].ProfitPercent {
			return out[i].ProfitPercent > out[j].ProfitPercent
		}
		if !out[i].CommenceTime.Equal(out[j].CommenceTime) {
			return out[i].CommenceTime.Before(out[j].CommenceTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// line agrupa os preços de uma mesma linha do mercado (ex.: total 221.5) por resultado
type line struct {
	outcomes map[string][]Price
	order    []string
}

func (d *Detector) detectMarket(ev oddsapi.Event, market string) []events.Opportunity {
	lines := map[string]*line{}
	var lineKeys []string
	books := map[string]bool{}

	for _, bk := range ev.Bookmakers {
		if d.allow != nil && !d.allow[bk.Key] {
			continue
		}
		m, ok := bk.Market(market)
		if !ok {
			continue
		}
		updated := m.LastUpdate
		if updated.IsZero() {
			updated = bk.LastUpdate
		}
		for _, o := range m.Outcomes {
			if !validPrice(o.Price) {
				continue
			}
			key, ok := lineKey(ev, market, o)
			if !ok {
				continue
			}
			ln, exists := lines[key]
			if !exists {
				ln = &line{outcomes: map[string][]Price{}}
				lines[key] = ln
				lineKeys = append(lineKeys, key)
			}
			if _, seen := ln.outcomes[o.Name]; !seen {
				ln.order = append(ln.order, o.Name)
			}
			ln.outcomes[o.Name] = append(ln.outcomes[o.Name], Price{
				Bookmaker:      bk.Key,
				BookmakerTitle: bk.Title,
				Outcome:        o.Name,
				Decimal:        o.Price,
				Point:          o.Point,
				LastUpdate:     updated,
			})
			books[bk.Key] = true
		}
	}
	if len(books) < 2 {
		return nil
	}

	sort.Strings(lineKeys)
	floor := d.minInverseSum()
	var out []events.Opportunity
	for _, k := range lineKeys {
		ln := lines[k]
		var legs []Price
		switch {
		case len(ln.order) == 2:
			legs = bestPair(ln.outcomes[ln.order[0]], ln.outcomes[ln.order[1]], floor)
		case len(ln.order) > 2:
			legs = bestLine(ln, floor)
		}
		if legs == nil {
			continue
		}
		if opp, ok := d.build(ev, market, legs); ok {
			out = append(out, opp)
		}
	}
	return out
}

// lineKey identifica a linha: h2h tem uma só; spreads usam o handicap do
// mandante (o visitante entra com o sinal invertido); totals usam o próprio ponto.
func lineKey(ev oddsapi.Event, market string, o oddsapi.Outcome) (string, bool) {
	switch market {
	case "spreads":
		if o.Point == nil {
			return "", false
		}
		p := *o.Point
		if o.Name == ev.AwayTeam {
			p = -p
		}
		return formatPoint(p), true
	case "totals":
		if o.Point == nil {
			return "", false
		}
		return formatPoint(*o.Point), true
	default:
		return "-", true
	}
}

func formatPoint(p float64) string {
	if p == 0 {
		p = 0 // normaliza -0
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// minInverseSum é a menor Σ1/odd aceita: abaixo dela o lucro passa de
// MaxProfitPercent. Zero quando não há teto.
func (d *Detector) minInverseSum() float64 {
	if d.cfg.MaxProfitPercent <= 0 {
		return 0
	}
	return 1 / (1 + d.cfg.MaxProfitPercent/100)
}

// bestPair testa todos os pares (a de uma casa, b de outra) e fica com a menor
// soma de 1/odd que não fique abaixo de floor
func bestPair(sideA, sideB []Price, floor float64) []Price {
	best := math.Inf(1)
	var pick []Price
	for _, a := range sideA {
		for _, b := range sideB {
			if a.Bookmaker == b.Bookmaker {
				continue
			}
			sum := 1/a.Decimal + 1/b.Decimal
			if sum < 1 && sum >= floor && sum < best {
				best = sum
				pick = []Price{a, b}
			}
		}
	}
	return pick
}

// bestLine pega a melhor odd de cada resultado; precisa de pelo menos duas casas
// envolvidas. Se o lucro passa do teto, descarta a odd mais distante da segunda
// melhor do mesmo resultado e tenta de novo.
func bestLine(ln *line, floor float64) []Price {
	dropped := map[string]map[string]bool{}
	for {
		legs := make([]Price, 0, len(ln.order))
		runnerUp := make([]float64, 0, len(ln.order))
		sum := 0.0
		books := map[string]bool{}
		for _, name := range ln.order {
			var best, second Price
			for _, p := range ln.outcomes[name] {
				if dropped[name][p.Bookmaker] {
					continue
				}
				switch {
				case p.Decimal > best.Decimal:
					second, best = best, p
				case p.Decimal > second.Decimal:
					second = p
				}
			}
			if best.Decimal == 0 {
				return nil
			}
			legs = append(legs, best)
			runnerUp = append(runnerUp, second.Decimal)
			sum += 1 / best.Decimal
			books[best.Bookmaker] = true
		}
		if sum >= 1 || len(books) < 2 {
			return nil
		}
		if sum >= floor {
			return legs
		}

		worst, ratio := -1, 0.0
		for i, l := range legs {
			if runnerUp[i] == 0 {
				continue
			}
			if r := l.Decimal / runnerUp[i]; r > ratio {
				worst, ratio = i, r
			}
		}
		if worst < 0 {
			return nil
		}
		name := ln.order[worst]
		if dropped[name] == nil {
			dropped[name] = map[string]bool{}
		}
		dropped[name][legs[worst].Bookmaker] = true
	}
}

func (d *Detector) build(ev oddsapi.Event, market string, prices []Price) (events.Opportunity, bool) {
	decimals := make([]float64, len(prices))
	for i, p := range prices {
		decimals[i] = p.Decimal
	}
	plan, err := CalculateStakes(decimals, d.cfg.TotalStake)
	if err != nil || !plan.IsArbitrage {
		return events.Opportunity{}, false
	}
	if plan.ProfitPercent < d.cfg.MinProfitPercent {
		return events.Opportunity{}, false
	}
	if d.cfg.MaxProfitPercent > 0 && plan.ProfitPercent > d.cfg.MaxProfitPercent {
		return events.Opportunity{}, false
	}

	legs := make([]events.Leg, len(prices))
	for i, p := range prices {
		legs[i] = events.Leg{
			Bookmaker:          p.Bookmaker,
			BookmakerTitle:     p.BookmakerTitle,
			Outcome:            p.Outcome,
			Point:              p.Point,
			Price:              p.Decimal,
			ImpliedProbability: 1 / p.Decimal,
			Stake:              plan.Stakes[i],
			Payout:             plan.Payouts[i],
			LastUpdate:         p.LastUpdate,
		}
	}

	return events.Opportunity{
		ID:                      OpportunityID(ev.ID, market, legs),
		EventID:                 ev.ID,
		SportKey:                ev.SportKey,
		SportTitle:              ev.SportTitle,
		HomeTeam:                ev.HomeTeam,
		AwayTeam:                ev.AwayTeam,
		CommenceTime:            ev.CommenceTime,
		Market:                  market,
		Legs:                    legs,
		TotalImpliedProbability: plan.TotalImpliedProbability,
		ProfitPercent:           plan.ProfitPercent,
		TotalStake:              plan.TotalStake,
		GuaranteedProfit:        plan.GuaranteedProfit,
		DetectedAt:              d.now().UTC(),
	}, true
}
