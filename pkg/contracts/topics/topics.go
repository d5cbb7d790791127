package topics

const (
	// Arbitragem
	Opportunities = "arbitrage_opportunities"

	// Apostas
	BetPlaced  = "arb_bet_placed"
	BetSettled = "arb_bet_settled"

	// DLQs
	BetSettlementDLQ = "arb_bet_settlement_dlq"
)
