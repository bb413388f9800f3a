// Package bot runs the trading decision loop: fetch candles, compute RSI,
// issue at most one threshold-triggered order per cycle, report via the
// notifier, sleep until the next tick.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amirphl/forex-rsi-bot/internal/broker"
	"github.com/amirphl/forex-rsi-bot/internal/candle"
	"github.com/amirphl/forex-rsi-bot/internal/indicator"
	"github.com/amirphl/forex-rsi-bot/internal/metrics"
	"github.com/amirphl/forex-rsi-bot/internal/notifier"
	"github.com/amirphl/forex-rsi-bot/internal/risk"
	"github.com/amirphl/forex-rsi-bot/internal/session"
	"github.com/amirphl/forex-rsi-bot/internal/tfutils"
)

// State is the decision loop state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdle
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

const (
	defaultOversold   = 30.0
	defaultOverbought = 70.0

	// Post-error cooldown before the loop resumes polling.
	defaultCooldown = time.Minute

	defaultLoginAttempts = 5
	defaultLoginBackoff  = 2 * time.Second
	maxLoginBackoff      = time.Minute

	// Closes fetched per cycle; must exceed the RSI period so the smoothing
	// has history to settle on.
	historyFactor = 4
	minHistory    = 50
)

// Params are the trading parameters, fixed for the process lifetime.
type Params struct {
	Symbol       string
	Timeframe    string
	RiskPercent  float64
	StopLossPips int
	RSIPeriod    int
	Oversold     float64
	Overbought   float64
}

// Snapshot is a point-in-time copy of the loop state for status reporting.
type Snapshot struct {
	State        State
	Active       bool
	LastRSI      float64
	LastCycle    time.Time
	OrdersOpened int
}

// Bot is the trading decision loop.
type Bot struct {
	params     Params
	gateway    broker.Gateway
	notifier   notifier.Notifier
	gate       *session.Gate
	activation *Activation
	metrics    *metrics.Metrics
	log        *logrus.Entry

	tick          time.Duration
	cooldown      time.Duration
	loginAttempts int
	loginBackoff  time.Duration
	now           func() time.Time

	mu           sync.Mutex
	state        State
	lastRSI      float64
	lastCycle    time.Time
	ordersOpened int
}

// New creates the decision loop. The tick interval is the timeframe duration
// (hourly for the default H1).
func New(
	params Params,
	gateway broker.Gateway,
	n notifier.Notifier,
	gate *session.Gate,
	activation *Activation,
	m *metrics.Metrics,
) (*Bot, error) {
	tick, err := tfutils.ParseTimeframe(params.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("timeframe %q: %w", params.Timeframe, err)
	}
	if params.Oversold == 0 {
		params.Oversold = defaultOversold
	}
	if params.Overbought == 0 {
		params.Overbought = defaultOverbought
	}

	return &Bot{
		params:        params,
		gateway:       gateway,
		notifier:      n,
		gate:          gate,
		activation:    activation,
		metrics:       m,
		log:           logrus.WithField("component", "bot"),
		tick:          tick,
		cooldown:      defaultCooldown,
		loginAttempts: defaultLoginAttempts,
		loginBackoff:  defaultLoginBackoff,
		now:           time.Now,
		state:         StateDisconnected,
	}, nil
}

// Activation returns the shared on/off switch the command handlers flip.
func (b *Bot) Activation() *Activation { return b.activation }

// Status returns a copy of the loop state for the /status command.
func (b *Bot) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:        b.state,
		Active:       b.activation.Active(),
		LastRSI:      b.lastRSI,
		LastCycle:    b.lastCycle,
		OrdersOpened: b.ordersOpened,
	}
}

// Run connects to the broker and drives the polling loop until the context
// is cancelled. A startup connection failure terminates the loop; every
// steady-state error is reported and survived.
func (b *Bot) Run(ctx context.Context) error {
	b.setState(StateConnecting)

	if err := b.connect(ctx); err != nil {
		b.setState(StateTerminated)
		b.notifier.Notify(fmt.Sprintf("Broker connection failed, shutting down: %v", err))
		return err
	}

	b.setState(StateIdle)
	b.notifier.Notify(fmt.Sprintf(
		"Connected to broker. Watching %s %s, send /start to begin trading.",
		b.params.Symbol, b.params.Timeframe,
	))

	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.setState(StateTerminated)
			b.log.Info("decision loop stopped")
			return nil
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}

// connect attempts the gateway login with exponential backoff.
func (b *Bot) connect(ctx context.Context) error {
	backoff := b.loginBackoff
	var err error

	for attempt := 1; attempt <= b.loginAttempts; attempt++ {
		if err = b.gateway.Login(ctx); err == nil {
			return nil
		}

		b.log.Warnf("login attempt %d/%d failed: %v", attempt, b.loginAttempts, err)
		if attempt == b.loginAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxLoginBackoff {
			backoff = maxLoginBackoff
		}
	}

	return fmt.Errorf("%w: %v", broker.ErrConnection, err)
}

// runCycle executes one decision cycle and classifies its outcome. Nothing
// here escapes to crash the process.
func (b *Bot) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("recovered from cycle panic: %v", r)
			b.metrics.CycleErrors.WithLabelValues("panic").Inc()
			b.notifier.Notify(fmt.Sprintf("Trading cycle panicked, cooling down: %v", r))
			b.sleep(ctx, b.cooldown)
		}
	}()

	b.metrics.CyclesTotal.Inc()

	if !b.activation.Active() {
		b.setState(StateIdle)
		return
	}
	b.setState(StateActive)

	err := b.cycle(ctx)
	if err == nil {
		b.mu.Lock()
		b.lastCycle = b.now()
		b.mu.Unlock()
		return
	}

	switch {
	case errors.Is(err, broker.ErrSessionExpired):
		b.metrics.CycleErrors.WithLabelValues("session_expired").Inc()
		b.notifier.Notify("Broker session expired, reconnecting")
		b.reconnect(ctx)
	case errors.Is(err, broker.ErrDataFetch):
		b.metrics.CycleErrors.WithLabelValues("data_fetch").Inc()
		b.notifier.Notify(fmt.Sprintf("Candle fetch failed, skipping cycle: %v", err))
	case errors.Is(err, indicator.ErrInsufficientData):
		b.metrics.CycleErrors.WithLabelValues("indicator").Inc()
		b.notifier.Notify(fmt.Sprintf("Not enough candle history for RSI, skipping cycle: %v", err))
	case errors.Is(err, risk.ErrInvalidParameter):
		b.metrics.CycleErrors.WithLabelValues("sizing").Inc()
		b.notifier.Notify(fmt.Sprintf("Position sizing failed, skipping cycle: %v", err))
	case errors.Is(err, broker.ErrOrderRejected):
		b.metrics.CycleErrors.WithLabelValues("order").Inc()
		b.notifier.Notify(fmt.Sprintf("Order execution failed: %v", err))
	default:
		b.metrics.CycleErrors.WithLabelValues("unclassified").Inc()
		b.notifier.Notify(fmt.Sprintf("Trading cycle failed, cooling down: %v", err))
		b.sleep(ctx, b.cooldown)
	}
}

// cycle runs the decision sequence: gate, fetch, RSI, threshold check,
// open-position check, sizing, execution. At most one order per cycle.
func (b *Bot) cycle(ctx context.Context) error {
	now := b.now()
	if !b.gate.Tradeable(now) {
		b.log.Debugf("outside trading session at %s, holding", now.UTC().Format("15:04"))
		b.metrics.SkippedCycles.WithLabelValues("session").Inc()
		return nil
	}

	count := b.params.RSIPeriod * historyFactor
	if count < minHistory {
		count = minHistory
	}

	candles, err := b.gateway.Candles(ctx, b.params.Symbol, b.params.Timeframe, count)
	if err != nil {
		return err
	}

	rsi, err := indicator.LastRSI(candle.Closes(candles), b.params.RSIPeriod)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.lastRSI = rsi
	b.mu.Unlock()
	b.metrics.LastRSI.Set(rsi)

	var side broker.Side
	switch {
	case rsi < b.params.Oversold:
		side = broker.Buy
	case rsi > b.params.Overbought:
		side = broker.Sell
	default:
		b.log.Debugf("RSI %.2f neutral, holding", rsi)
		b.metrics.SkippedCycles.WithLabelValues("neutral").Inc()
		return nil
	}

	positions, err := b.gateway.OpenPositions(ctx, b.params.Symbol)
	if err != nil {
		return err
	}
	if len(positions) > 0 {
		b.metrics.SkippedCycles.WithLabelValues("open_position").Inc()
		b.notifier.Notify(fmt.Sprintf(
			"RSI %.2f signals %s but %s already has %d open position(s), holding",
			rsi, side, b.params.Symbol, len(positions),
		))
		return nil
	}

	balance, err := b.gateway.Balance(ctx)
	if err != nil {
		return err
	}
	b.metrics.AccountBalance.Set(balance)

	lots, err := risk.Size(balance, b.params.RiskPercent, b.params.StopLossPips, risk.PipValue(b.params.Symbol))
	if err != nil {
		return err
	}
	if lots == 0 {
		b.metrics.SkippedCycles.WithLabelValues("zero_size").Inc()
		b.notifier.Notify(fmt.Sprintf(
			"RSI %.2f signals %s but balance %.2f cannot carry the risk, holding",
			rsi, side, balance,
		))
		return nil
	}

	return b.execute(ctx, side, lots, rsi)
}

func (b *Bot) execute(ctx context.Context, side broker.Side, lots, rsi float64) error {
	order := broker.Order{
		Symbol:         b.params.Symbol,
		Side:           side,
		Lots:           lots,
		StopLossPips:   b.params.StopLossPips,
		TakeProfitPips: 2 * b.params.StopLossPips,
	}

	tradeID, err := b.gateway.OpenTrade(ctx, order)
	if err != nil {
		return err
	}

	if err := b.gateway.SetStopLoss(ctx, tradeID, order.StopLossPips); err != nil {
		b.notifier.Notify(fmt.Sprintf("Trade %s opened but stop loss failed: %v", tradeID, err))
	}
	if err := b.gateway.SetTakeProfit(ctx, tradeID, order.TakeProfitPips); err != nil {
		b.notifier.Notify(fmt.Sprintf("Trade %s opened but take profit failed: %v", tradeID, err))
	}

	b.mu.Lock()
	b.ordersOpened++
	b.mu.Unlock()
	b.metrics.OrdersTotal.WithLabelValues(string(side)).Inc()

	b.notifier.Notify(fmt.Sprintf(
		"Opened %s %s %.2f lots at RSI %.2f (SL %d pips, TP %d pips), trade %s",
		side, order.Symbol, lots, rsi, order.StopLossPips, order.TakeProfitPips, tradeID,
	))
	return nil
}

// reconnect re-runs the login backoff after a dropped session. Failure is
// not fatal: the next cycle will report again and retry.
func (b *Bot) reconnect(ctx context.Context) {
	b.metrics.ReconnectsTotal.Inc()
	b.setState(StateConnecting)

	if err := b.connect(ctx); err != nil {
		b.log.Errorf("re-login failed: %v", err)
		b.notifier.Notify(fmt.Sprintf("Re-login failed, will retry next cycle: %v", err))
	} else {
		b.notifier.Notify("Broker session re-established")
	}

	b.setState(StateActive)
}

func (b *Bot) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
	b.metrics.LoopState.Set(float64(s))
}

func (b *Bot) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
