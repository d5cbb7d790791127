package dto

import "github.com/radieske/sports-arbitrage-platform/internal/portfolio/repo"

type PortfolioResponse struct {
	UserID        string             `json:"userId"`
	PortfolioID   string             `json:"portfolioId"`
	BalanceCents  int64              `json:"balance_cents"`
	ReservedCents int64              `json:"reserved_cents"`
	Ledger        []repo.LedgerEntry `json:"ledger,omitempty"`
}

func FromPortfolio(pf repo.Portfolio) PortfolioResponse {
	return PortfolioResponse{
		UserID:        pf.UserID,
		PortfolioID:   pf.ID,
		BalanceCents:  pf.BalanceCents,
		ReservedCents: pf.ReservedCents,
	}
}
