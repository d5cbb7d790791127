package events

// BetLeg é a perna persistida de uma aposta de arbitragem
type BetLeg struct {
	Bookmaker   string   `json:"bookmaker"`
	Outcome     string   `json:"outcome"`
	Point       *float64 `json:"point,omitempty"`
	Price       float64  `json:"price"`
	StakeCents  int64    `json:"stake_cents"`
	PayoutCents int64    `json:"payout_cents"`
}

type BetPlaced struct {
	BetID               string   `json:"bet_id"`
	UserID              string   `json:"user_id"`
	OpportunityID       string   `json:"opportunity_id"`
	EventID             string   `json:"event_id"`
	SportKey            string   `json:"sport_key"`
	Market              string   `json:"market"`
	TotalStakeCents     int64    `json:"total_stake_cents"`
	ExpectedProfitCents int64    `json:"expected_profit_cents"`
	Legs                []BetLeg `json:"legs"`
	ReservedRef         string   `json:"reserved_ref"` // external_ref usado na reserva do portfolio (betID)
	TsUnixMs            int64    `json:"ts_unix_ms"`
}
