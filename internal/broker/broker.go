// Package broker
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/forex-rsi-bot/internal/candle"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is a market order request. StopLossPips and TakeProfitPips are
// attached to the trade right after it opens.
type Order struct {
	Symbol         string
	Side           Side
	Lots           float64
	StopLossPips   int
	TakeProfitPips int
}

// Position is an open trade reported by the broker.
type Position struct {
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Lots     float64   `json:"lots"`
	OpenRate float64   `json:"open_rate"`
	OpenedAt time.Time `json:"opened_at"`
}

var (
	// ErrConnection means the broker session could not be established.
	ErrConnection = errors.New("broker connection failed")
	// ErrSessionExpired means the broker rejected our token; a re-login is
	// required before the next call.
	ErrSessionExpired = errors.New("broker session expired")
	// ErrDataFetch wraps transient market-data failures.
	ErrDataFetch = errors.New("broker data fetch failed")
	// ErrOrderRejected means the broker refused an order.
	ErrOrderRejected = errors.New("broker order rejected")
)

// Gateway is the narrow surface of the broker API the bot consumes.
type Gateway interface {
	Name() string
	Login(ctx context.Context) error
	Candles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error)
	Balance(ctx context.Context) (float64, error)
	OpenPositions(ctx context.Context, symbol string) ([]Position, error)
	OpenTrade(ctx context.Context, order Order) (string, error)
	SetStopLoss(ctx context.Context, tradeID string, pips int) error
	SetTakeProfit(ctx context.Context, tradeID string, pips int) error
}
