package arbitrage

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice = errors.New("arbitrage: price must be a finite decimal odd greater than 1")
	ErrNoPrices     = errors.New("arbitrage: at least two prices are required")
	ErrInvalidStake = errors.New("arbitrage: total stake must be positive")
)

// StakePlan é a divisão da banca entre as pernas para um retorno igual em qualquer resultado
type StakePlan struct {
	Stakes                  []decimal.Decimal `json:"stakes"`
	Payouts                 []decimal.Decimal `json:"payouts"`
	TotalStake              decimal.Decimal   `json:"total_stake"`
	GuaranteedProfit        decimal.Decimal   `json:"guaranteed_profit"`
	ProfitPercent           float64           `json:"profit_percent"`
	TotalImpliedProbability float64           `json:"total_implied_probability"`
	IsArbitrage             bool              `json:"is_arbitrage"`
}

func validPrice(p float64) bool {
	return p > 1 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// inverseSum devolve Σ 1/p_i
func inverseSum(prices []float64) (float64, error) {
	if len(prices) < 2 {
		return 0, ErrNoPrices
	}
	sum := 0.0
	for _, p := range prices {
		if !validPrice(p) {
			return 0, ErrInvalidPrice
		}
		sum += 1 / p
	}
	return sum, nil
}

// ProfitPercent é o retorno garantido sobre a banca total: (1/Σ(1/p) − 1)·100.
// Negativo quando não há arbitragem.
func ProfitPercent(prices []float64) (float64, error) {
	sum, err := inverseSum(prices)
	if err != nil {
		return 0, err
	}
	return (1/sum - 1) * 100, nil
}

// CalculateStakes divide total proporcionalmente a 1/p_i, arredondando para centavos.
// O lucro garantido considera o menor retorno após o arredondamento.
func CalculateStakes(prices []float64, total decimal.Decimal) (StakePlan, error) {
	sum, err := inverseSum(prices)
	if err != nil {
		return StakePlan{}, err
	}
	if !total.IsPositive() {
		return StakePlan{}, ErrInvalidStake
	}

	one := decimal.NewFromInt(1)
	inv := make([]decimal.Decimal, len(prices))
	invSum := decimal.Zero
	for i, p := range prices {
		inv[i] = one.Div(decimal.NewFromFloat(p))
		invSum = invSum.Add(inv[i])
	}

	plan := StakePlan{
		Stakes:                  make([]decimal.Decimal, len(prices)),
		Payouts:                 make([]decimal.Decimal, len(prices)),
		TotalStake:              decimal.Zero,
		TotalImpliedProbability: sum,
		ProfitPercent:           (1/sum - 1) * 100,
		IsArbitrage:             sum < 1,
	}

	var minPayout decimal.Decimal
	for i, p := range prices {
		stake := total.Mul(inv[i]).Div(invSum).Round(2)
		payout := stake.Mul(decimal.NewFromFloat(p)).Round(2)
		plan.Stakes[i] = stake
		plan.Payouts[i] = payout
		plan.TotalStake = plan.TotalStake.Add(stake)
		if i == 0 || payout.LessThan(minPayout) {
			minPayout = payout
		}
	}
	plan.GuaranteedProfit = minPayout.Sub(plan.TotalStake)
	return plan, nil
}
