// Package risk converts account balance and risk parameters into an order
// quantity expressed in lots.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidParameter is returned when sizing inputs make no sense.
var ErrInvalidParameter = fmt.Errorf("invalid sizing parameter")

// DefaultPipValue is the per-lot monetary value of one pip used for symbols
// missing from the table.
const DefaultPipValue = 10.0

// pipValues is a fixed per-instrument table. Pip value is not derived from
// live quotes, which is a known simplification for non-USD quote currencies.
var pipValues = map[string]float64{
	"EURUSD": 10.0,
	"GBPUSD": 10.0,
	"AUDUSD": 10.0,
	"NZDUSD": 10.0,
	"USDJPY": 9.1,
	"USDCHF": 10.9,
	"USDCAD": 7.6,
	"XAUUSD": 10.0,
}

// PipValue returns the pip value per standard lot for a symbol.
func PipValue(symbol string) float64 {
	if v, ok := pipValues[symbol]; ok {
		return v
	}
	return DefaultPipValue
}

// Size returns the order quantity in lots:
//
//	round(balance * riskPercent/100 / (stopLossPips * pipValue), 2)
//
// A result of 0 means the balance cannot carry the risk; the caller must not
// submit a trade in that case.
func Size(balance, riskPercent float64, stopLossPips int, pipValue float64) (float64, error) {
	if balance <= 0 {
		return 0, fmt.Errorf("%w: balance %.2f", ErrInvalidParameter, balance)
	}
	if riskPercent <= 0 {
		return 0, fmt.Errorf("%w: risk percent %.2f", ErrInvalidParameter, riskPercent)
	}
	if stopLossPips <= 0 {
		return 0, fmt.Errorf("%w: stop loss %d pips", ErrInvalidParameter, stopLossPips)
	}
	if pipValue <= 0 {
		return 0, fmt.Errorf("%w: pip value %.2f", ErrInvalidParameter, pipValue)
	}

	riskAmount := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(riskPercent)).
		Div(decimal.NewFromInt(100))
	pipRisk := decimal.NewFromInt(int64(stopLossPips)).
		Mul(decimal.NewFromFloat(pipValue))

	lots, _ := riskAmount.Div(pipRisk).Round(2).Float64()
	return lots, nil
}
