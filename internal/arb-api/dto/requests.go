package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
)

// ConvertRequest converte uma odd em formato american, decimal ou probability
type ConvertRequest struct {
	Value  float64 `json:"value"`
	Format string  `json:"format"`
}

// CalculateRequest divide a banca entre odds decimais informadas pelo cliente
type CalculateRequest struct {
	Odds       []float64       `json:"odds"`
	Format     string          `json:"format,omitempty"` // default decimal
	TotalStake decimal.Decimal `json:"total_stake"`
}

type CreateUserRequest struct {
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

// SettingsRequest aceita atualização parcial: campos ausentes mantêm o valor atual
type SettingsRequest struct {
	Sports           []string `json:"sports,omitempty"`
	Regions          []string `json:"regions,omitempty"`
	Markets          []string `json:"markets,omitempty"`
	Bookmakers       []string `json:"bookmakers,omitempty"`
	MinProfitPercent *float64 `json:"min_profit_percent,omitempty"`
	MaxProfitPercent *float64 `json:"max_profit_percent,omitempty"`
	DefaultStake     *float64 `json:"default_stake,omitempty"`
	PollInterval     string   `json:"poll_interval,omitempty"`
	PollingEnabled   *bool    `json:"polling_enabled,omitempty"`
}
