package dto

import (
	"github.com/radieske/sports-arbitrage-platform/internal/arbitrage"
	"github.com/radieske/sports-arbitrage-platform/internal/bets/repo"
)

type PlaceBetResponse struct {
	BetID         string   `json:"betId"`
	Status        string   `json:"status"`
	ReservationID string   `json:"reservation_id"`
	Bet           repo.Bet `json:"bet"`
}

// OddsMovedResponse acompanha o 409 quando a oportunidade mudou ou sumiu
type OddsMovedResponse struct {
	Error        string                 `json:"error"`
	Revalidation arbitrage.Revalidation `json:"revalidation"`
}

type BetListResponse struct {
	Bets []repo.Bet `json:"bets"`
}
