// Package oddsmath concentra as conversões de odds (americana, decimal,
// probabilidade implícita) e o cálculo de margem (overround) das casas.
package oddsmath

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrInvalidAmerican    = errors.New("invalid american odds")
	ErrInvalidDecimal     = errors.New("invalid decimal odds")
	ErrInvalidProbability = errors.New("invalid probability")
)

// Format identifica a representação de uma odd
type Format string

const (
	OddsAmerican    Format = "american"
	OddsDecimal     Format = "decimal"
	OddsProbability Format = "probability"
)

// Limites aceitos nas conversões
const (
	MaxAmerican = 1_000_000
	MaxDecimal  = 10_000.0
)

// AmericanToDecimal: +150 -> 2.50, -150 -> 1.6667
func AmericanToDecimal(american int) (float64, error) {
	if (american > -100 && american < 100) || american > MaxAmerican || american < -MaxAmerican {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmerican, american)
	}
	if american > 0 {
		return float64(american)/100.0 + 1.0, nil
	}
	return 100.0/float64(-american) + 1.0, nil
}

// DecimalToAmerican: 2.50 -> +150, 1.6667 -> -150
func DecimalToAmerican(decimal float64) (int, error) {
	if !validDecimal(decimal) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDecimal, decimal)
	}
	if decimal >= 2.0 {
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}
	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// ImpliedProbability retorna 1/d para uma odd decimal
func ImpliedProbability(decimal float64) (float64, error) {
	if !validDecimal(decimal) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDecimal, decimal)
	}
	return 1.0 / decimal, nil
}

func AmericanToImpliedProbability(american int) (float64, error) {
	d, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}
	return ImpliedProbability(d)
}

func ProbabilityToDecimal(p float64) (float64, error) {
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidProbability, p)
	}
	return 1.0 / p, nil
}

// Overround soma as probabilidades implícitas. < 1 indica arbitragem,
// > 1 indica a margem da casa.
func Overround(decimals []float64) (float64, error) {
	if len(decimals) == 0 {
		return 0, fmt.Errorf("%w: no prices", ErrInvalidDecimal)
	}
	var sum float64
	for _, d := range decimals {
		p, err := ImpliedProbability(d)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum, nil
}

// VigPercent é a margem da casa em pontos percentuais (0 quando não há margem)
func VigPercent(decimals []float64) (float64, error) {
	total, err := Overround(decimals)
	if err != nil {
		return 0, err
	}
	if total <= 1 {
		return 0, nil
	}
	return (total - 1) * 100, nil
}

// RemoveVig normaliza as probabilidades implícitas para somarem 1 (método multiplicativo)
func RemoveVig(decimals []float64) ([]float64, error) {
	total, err := Overround(decimals)
	if err != nil {
		return nil, err
	}
	fair := make([]float64, len(decimals))
	for i, d := range decimals {
		fair[i] = (1.0 / d) / total
	}
	return fair, nil
}

// FormatAmerican formata com sinal explícito: "+150", "-110"
func FormatAmerican(american int) string {
	if american > 0 {
		return "+" + strconv.Itoa(american)
	}
	return strconv.Itoa(american)
}

// Conversion traz a mesma odd nas três representações
type Conversion struct {
	Decimal            float64 `json:"decimal"`
	American           int     `json:"american"`
	AmericanFormatted  string  `json:"american_formatted"`
	ImpliedProbability float64 `json:"implied_probability"`
}

// Convert interpreta value no formato from e devolve as três representações
func Convert(value float64, from Format) (Conversion, error) {
	var dec float64
	var err error
	switch from {
	case OddsDecimal:
		dec = value
	case OddsAmerican:
		if math.IsNaN(value) || value != math.Trunc(value) || math.Abs(value) > MaxAmerican {
			return Conversion{}, fmt.Errorf("%w: %v", ErrInvalidAmerican, value)
		}
		dec, err = AmericanToDecimal(int(value))
	case OddsProbability:
		dec, err = ProbabilityToDecimal(value)
	default:
		return Conversion{}, fmt.Errorf("unknown odds format %q", from)
	}
	if err != nil {
		return Conversion{}, err
	}

	am, err := DecimalToAmerican(dec)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{
		Decimal:            round(dec, 4),
		American:           am,
		AmericanFormatted:  FormatAmerican(am),
		ImpliedProbability: round(1.0/dec, 6),
	}, nil
}

func validDecimal(d float64) bool {
	return !math.IsNaN(d) && d > 1.0 && d <= MaxDecimal
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
