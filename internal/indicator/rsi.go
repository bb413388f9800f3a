// Package indicator
package indicator

import (
	"fmt"
	"math"
)

// ErrInsufficientData is returned when the closing-price history is too
// short to seed the requested period.
var ErrInsufficientData = fmt.Errorf("insufficient data for indicator")

// RSI computes the Relative Strength Index over closing prices using Wilder
// smoothing. The result is aligned to the input: the first period entries are
// NaN, every later entry is in [0, 100]. RSI is 100 when the average loss of
// the window is zero.
func RSI(closes []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: period %d", ErrInsufficientData, period)
	}
	if len(closes) < period+1 {
		return nil, fmt.Errorf("%w: need %d closes, have %d", ErrInsufficientData, period+1, len(closes))
	}

	rsi := make([]float64, len(closes))
	for i := 0; i < period; i++ {
		rsi[i] = math.NaN()
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss += -change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	rsi[period] = value(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss = 0, 0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		rsi[i] = value(avgGain, avgLoss)
	}

	return rsi, nil
}

// LastRSI returns only the most recent RSI value, which is all the decision
// loop consumes.
func LastRSI(closes []float64, period int) (float64, error) {
	series, err := RSI(closes, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

func value(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
