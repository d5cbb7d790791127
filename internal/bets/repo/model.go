package repo

import "time"

const (
	StatusPending = "PENDING"
	StatusSettled = "SETTLED"
	StatusVoid    = "VOID"
)

// Bet é a aposta de arbitragem persistida no Postgres (uma linha por oportunidade apostada)
type Bet struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"userId"`
	OpportunityID       string     `json:"opportunity_id"`
	EventID             string     `json:"event_id"`
	SportKey            string     `json:"sport_key"`
	Market              string     `json:"market"`
	HomeTeam            string     `json:"home_team"`
	AwayTeam            string     `json:"away_team"`
	CommenceTime        time.Time  `json:"commence_time"`
	TotalStakeCents     int64      `json:"total_stake_cents"`
	ExpectedProfitCents int64      `json:"expected_profit_cents"`
	PayoutCents         *int64     `json:"payout_cents,omitempty"`
	ActualProfitCents   *int64     `json:"actual_profit_cents,omitempty"`
	WinningOutcome      string     `json:"winning_outcome,omitempty"`
	SettleReason        string     `json:"settle_reason,omitempty"`
	Status              string     `json:"status"`
	Legs                []Leg      `json:"legs"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	SettledAt           *time.Time `json:"settled_at,omitempty"`
}

type Leg struct {
	Bookmaker   string   `json:"bookmaker"`
	Outcome     string   `json:"outcome"`
	Point       *float64 `json:"point,omitempty"`
	Price       float64  `json:"price"`
	StakeCents  int64    `json:"stake_cents"`
	PayoutCents int64    `json:"payout_cents"`
}
