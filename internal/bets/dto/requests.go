package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest aposta em todas as pernas de uma oportunidade atual
type PlaceBetRequest struct {
	OpportunityID string          `json:"opportunity_id"`
	TotalStake    decimal.Decimal `json:"total_stake"` // em unidades da moeda, ex: "100.00"
}
