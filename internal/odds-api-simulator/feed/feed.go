// Package feed gera o calendário, as odds e os placares do simulador da API
// de odds. Probabilidades e placares são fixos por partida; os preços de cada
// casa variam a cada consulta e, com probabilidade configurável, um conjunto
// de casas recebe preços que formam uma arbitragem.
package feed

import (
	"math"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/radieske/sports-arbitrage-platform/internal/odds-api-simulator/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
)

const (
	marketH2H     = "h2h"
	marketSpreads = "spreads"
	marketTotals  = "totals"
)

type Options struct {
	ArbProbability float64
	Seed           int64
	Now            func() time.Time
}

type Feed struct {
	mu      sync.Mutex
	rng     *rand.Rand
	arbProb float64
	now     func() time.Time
}

func New(opts Options) *Feed {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Feed{
		rng:     rand.New(rand.NewSource(opts.Seed)),
		arbProb: opts.ArbProbability,
		now:     opts.Now,
	}
}

// Sports lista os esportes ativos
func (f *Feed) Sports() []oddsapi.Sport {
	out := make([]oddsapi.Sport, len(sports))
	for i, s := range sports {
		out[i] = oddsapi.Sport{Key: s.key, Group: s.group, Title: s.title, Description: s.title, Active: true}
	}
	return out
}

func (f *Feed) HasSport(key string) bool {
	_, ok := findSport(key)
	return ok
}

// Bookmakers devolve as casas de um conjunto de regiões ou a lista explícita,
// que tem precedência como na API real
func Bookmakers(regions, keys []string) []string {
	var out []string
	for _, b := range bookmakers {
		if len(keys) > 0 {
			if slices.Contains(keys, b.key) {
				out = append(out, b.key)
			}
			continue
		}
		if slices.Contains(regions, b.region) {
			out = append(out, b.key)
		}
	}
	return out
}

// outcome é um resultado com a probabilidade justa
type outcome struct {
	name  string
	point *float64
	p     float64
}

// probs são as probabilidades justas de uma partida
type probs struct {
	home, draw, away float64
}

func fairProbs(s sportDef, fx dto.Fixture) probs {
	r := rand.New(rand.NewSource(seed(fx.EventID)))
	home := 0.30 + r.Float64()*0.32
	if !s.draws {
		return probs{home: home, away: 1 - home}
	}
	draw := 0.22 + r.Float64()*0.08
	return probs{home: home, draw: draw, away: 1 - home - draw}
}

func outcomes(s sportDef, fx dto.Fixture, market string) []outcome {
	pr := fairProbs(s, fx)
	switch market {
	case marketH2H:
		if s.draws {
			return []outcome{{name: fx.HomeTeam, p: pr.home}, {name: "Draw", p: pr.draw}, {name: fx.AwayTeam, p: pr.away}}
		}
		return []outcome{{name: fx.HomeTeam, p: pr.home}, {name: fx.AwayTeam, p: pr.away}}
	case marketSpreads:
		homePt, awayPt := -s.spread, s.spread
		if pr.home < pr.away {
			homePt, awayPt = s.spread, -s.spread
		}
		return []outcome{{name: fx.HomeTeam, point: &homePt, p: 0.5}, {name: fx.AwayTeam, point: &awayPt, p: 0.5}}
	case marketTotals:
		over, under := s.total, s.total
		return []outcome{{name: "Over", point: &over, p: 0.5}, {name: "Under", point: &under, p: 0.5}}
	}
	return nil
}

func price(p float64) float64 {
	v := math.Round(100/p) / 100
	if v < 1.01 {
		return 1.01
	}
	return v
}

// Odds devolve as partidas ainda não encerradas com os preços das casas
// pedidas. ok=false para esporte desconhecido.
func (f *Feed) Odds(sport string, q oddsapi.OddsQuery) ([]oddsapi.Event, bool) {
	s, ok := findSport(sport)
	if !ok {
		return nil, false
	}
	now := f.now().UTC()
	books := Bookmakers(q.Regions, q.Bookmakers)
	markets := q.Markets
	if len(markets) == 0 {
		markets = []string{marketH2H}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := []oddsapi.Event{}
	for _, fx := range s.fixtures(now) {
		if phase(fx, now) == dto.PhaseFinished {
			continue
		}
		if len(q.EventIDs) > 0 && !slices.Contains(q.EventIDs, fx.EventID) {
			continue
		}
		ev := oddsapi.Event{
			ID:           fx.EventID,
			SportKey:     fx.SportKey,
			SportTitle:   fx.SportTitle,
			CommenceTime: fx.CommenceTime,
			HomeTeam:     fx.HomeTeam,
			AwayTeam:     fx.AwayTeam,
			Bookmakers:   make([]oddsapi.Bookmaker, len(books)),
		}
		for i, key := range books {
			ev.Bookmakers[i] = oddsapi.Bookmaker{Key: key, Title: title(key), LastUpdate: now}
		}
		for _, m := range markets {
			outs := outcomes(s, fx, m)
			if outs == nil {
				continue
			}
			f.priceMarket(ev.Bookmakers, m, outs, now)
		}
		out = append(out, ev)
	}
	return out, true
}

// priceMarket adiciona o mercado a cada casa com margem própria. Com
// probabilidade arbProb, cada resultado ganha um preço acima do justo em
// uma casa diferente, o que soma menos de 100% de probabilidade implícita.
func (f *Feed) priceMarket(books []oddsapi.Bookmaker, market string, outs []outcome, now time.Time) {
	prices := make([][]float64, len(books))
	for b := range books {
		margin := 1.02 + f.rng.Float64()*0.06
		prices[b] = make([]float64, len(outs))
		for i, o := range outs {
			jitter := 1 + (f.rng.Float64()-0.5)*0.04
			prices[b][i] = price(o.p * margin * jitter)
		}
	}

	if len(books) >= 2 && f.rng.Float64() < f.arbProb {
		edge := 0.01 + f.rng.Float64()*0.03
		start := f.rng.Intn(len(books))
		for i, o := range outs {
			prices[(start+i)%len(books)][i] = price(o.p * (1 - edge))
		}
	}

	for b := range books {
		m := oddsapi.Market{Key: market, LastUpdate: now, Outcomes: make([]oddsapi.Outcome, len(outs))}
		for i, o := range outs {
			m.Outcomes[i] = oddsapi.Outcome{Name: o.name, Price: prices[b][i], Point: o.point}
		}
		books[b].Markets = append(books[b].Markets, m)
	}
}

func title(key string) string {
	for _, b := range bookmakers {
		if b.key == key {
			return b.title
		}
	}
	return key
}

// Scores devolve partidas ao vivo e futuras; com daysFrom > 0 inclui também
// as encerradas desde então. ok=false para esporte desconhecido.
func (f *Feed) Scores(sport string, daysFrom int, eventIDs []string) ([]oddsapi.ScoreEvent, bool) {
	s, ok := findSport(sport)
	if !ok {
		return nil, false
	}
	now := f.now().UTC()
	since := now.Add(-time.Duration(daysFrom) * 24 * time.Hour)

	out := []oddsapi.ScoreEvent{}
	for _, fx := range s.fixtures(now) {
		if len(eventIDs) > 0 && !slices.Contains(eventIDs, fx.EventID) {
			continue
		}
		ph := phase(fx, now)
		if ph == dto.PhaseFinished && (daysFrom <= 0 || fx.CommenceTime.Before(since)) {
			continue
		}
		ev := oddsapi.ScoreEvent{
			ID:           fx.EventID,
			SportKey:     fx.SportKey,
			SportTitle:   fx.SportTitle,
			CommenceTime: fx.CommenceTime,
			Completed:    ph == dto.PhaseFinished,
			HomeTeam:     fx.HomeTeam,
			AwayTeam:     fx.AwayTeam,
		}
		if ph != dto.PhaseUpcoming {
			home, away := finalScore(s, fx)
			if ph == dto.PhaseLive {
				played := float64(now.Sub(fx.CommenceTime)) / float64(gameLength)
				home = int(float64(home) * played)
				away = int(float64(away) * played)
			}
			ev.Scores = []oddsapi.Score{
				{Name: fx.HomeTeam, Score: strconv.Itoa(home)},
				{Name: fx.AwayTeam, Score: strconv.Itoa(away)},
			}
			updated := now
			if ev.Completed {
				updated = fx.CommenceTime.Add(gameLength)
			}
			ev.LastUpdate = &updated
		}
		out = append(out, ev)
	}
	return out, true
}

// finalScore é determinístico por partida para que a liquidação seja estável
func finalScore(s sportDef, fx dto.Fixture) (int, int) {
	r := rand.New(rand.NewSource(seed(fx.EventID) ^ 0x5eed))
	return s.scoreBase + r.Intn(s.scoreSpan), s.scoreBase + r.Intn(s.scoreSpan)
}
