package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leg é uma aposta individual de uma oportunidade (uma casa, um resultado)
type Leg struct {
	Bookmaker          string          `json:"bookmaker"`
	BookmakerTitle     string          `json:"bookmaker_title,omitempty"`
	Outcome            string          `json:"outcome"`
	Point              *float64        `json:"point,omitempty"`
	Price              float64         `json:"price"` // odd decimal
	ImpliedProbability float64         `json:"implied_probability"`
	Stake              decimal.Decimal `json:"stake"`
	Payout             decimal.Decimal `json:"payout"`
	LastUpdate         time.Time       `json:"last_update,omitempty"`
}

// Evento publicado no tópico "arbitrage_opportunities"
type Opportunity struct {
	ID                      string          `json:"id"`
	EventID                 string          `json:"event_id"`
	SportKey                string          `json:"sport_key"`
	SportTitle              string          `json:"sport_title,omitempty"`
	HomeTeam                string          `json:"home_team"`
	AwayTeam                string          `json:"away_team"`
	CommenceTime            time.Time       `json:"commence_time"`
	Market                  string          `json:"market"` // h2h | spreads | totals
	Legs                    []Leg           `json:"legs"`
	TotalImpliedProbability float64         `json:"total_implied_probability"`
	ProfitPercent           float64         `json:"profit_percent"`
	TotalStake              decimal.Decimal `json:"total_stake"`
	GuaranteedProfit        decimal.Decimal `json:"guaranteed_profit"`
	DetectedAt              time.Time       `json:"detected_at"`
}

// Prices retorna as odds decimais das pernas, na ordem das pernas
func (o Opportunity) Prices() []float64 {
	out := make([]float64, len(o.Legs))
	for i, l := range o.Legs {
		out[i] = l.Price
	}
	return out
}
