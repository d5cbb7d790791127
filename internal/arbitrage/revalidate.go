package arbitrage

import (
	"math"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// Revalidation compara uma oportunidade com as odds atuais do evento
type Revalidation struct {
	Current        []float64 `json:"current_prices"`
	Missing        bool      `json:"missing"` // alguma perna não existe mais
	Moved          bool      `json:"moved"`   // algum preço mudou
	StillArbitrage bool      `json:"still_arbitrage"`
	ProfitPercent  float64   `json:"profit_percent"`
}

const priceEpsilon = 1e-9

// Revalidate procura cada perna (casa, resultado, ponto) no evento atual
func Revalidate(opp events.Opportunity, ev oddsapi.Event) Revalidation {
	rv := Revalidation{Current: make([]float64, len(opp.Legs))}

	for i, leg := range opp.Legs {
		price, ok := findPrice(ev, opp.Market, leg)
		if !ok {
			rv.Missing = true
			continue
		}
		rv.Current[i] = price
		if math.Abs(price-leg.Price) > priceEpsilon {
			rv.Moved = true
		}
	}
	if rv.Missing {
		return rv
	}
	if p, err := ProfitPercent(rv.Current); err == nil {
		rv.ProfitPercent = p
		rv.StillArbitrage = p > 0
	}
	return rv
}

func findPrice(ev oddsapi.Event, market string, leg events.Leg) (float64, bool) {
	for _, bk := range ev.Bookmakers {
		if bk.Key != leg.Bookmaker {
			continue
		}
		m, ok := bk.Market(market)
		if !ok {
			return 0, false
		}
		for _, o := range m.Outcomes {
			if o.Name != leg.Outcome || !samePoint(o.Point, leg.Point) {
				continue
			}
			if !validPrice(o.Price) {
				return 0, false
			}
			return o.Price, true
		}
		return 0, false
	}
	return 0, false
}

func samePoint(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) < priceEpsilon
}
