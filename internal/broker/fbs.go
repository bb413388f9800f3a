package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amirphl/forex-rsi-bot/internal/candle"
	"github.com/amirphl/forex-rsi-bot/internal/tfutils"
)

// Credentials holds the FBS trader API login material.
type Credentials struct {
	UserID      string
	Password    string
	Host        string
	AccountType string
}

// FBS is an HTTP client for the FBS trader API.
type FBS struct {
	creds  Credentials
	client *http.Client
	log    *logrus.Entry

	mu    sync.RWMutex
	token string
}

const (
	requestTimeout = 30 * time.Second

	fetchAttempts = 3
	fetchBackoff  = 2 * time.Second
	maxBackoff    = time.Minute
)

// NewFBS creates a gateway client. No network call happens until Login.
func NewFBS(creds Credentials) *FBS {
	return &FBS{
		creds:  creds,
		client: &http.Client{Timeout: requestTimeout},
		log:    logrus.WithField("component", "broker"),
	}
}

func (f *FBS) Name() string { return "fbs" }

// retry wraps a call with backoff for transient errors. Session expiry is
// not retried here; the caller has to re-login first.
func (f *FBS) retry(attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, ErrSessionExpired) {
			return err
		}
		f.log.Warnf("attempt %d/%d failed: %v, backing off for %v", i, attempts, err, backoff)
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return err
}

// Login opens a broker session and stores the access token.
func (f *FBS) Login(ctx context.Context) error {
	payload := map[string]string{
		"user_id":      f.creds.UserID,
		"password":     f.creds.Password,
		"account_type": f.creds.AccountType,
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := f.post(ctx, "/api/v1/sessions", payload, &resp, false); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if resp.Token == "" {
		return fmt.Errorf("%w: empty session token", ErrConnection)
	}

	f.mu.Lock()
	f.token = resp.Token
	f.mu.Unlock()

	f.log.Infof("logged in to %s account %s", f.creds.AccountType, f.creds.UserID)
	return nil
}

// Candles fetches the most recent count candles, oldest first.
func (f *FBS) Candles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	period := tfutils.BrokerCode(timeframe)
	if period == "" {
		return nil, fmt.Errorf("%w: unsupported timeframe %s", ErrDataFetch, timeframe)
	}

	query := url.Values{
		"symbol": {symbol},
		"period": {period},
		"count":  {strconv.Itoa(count)},
	}

	var resp struct {
		Candles []struct {
			Time   int64   `json:"time"`
			Open   float64 `json:"open"`
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Close  float64 `json:"close"`
			Volume float64 `json:"volume"`
		} `json:"candles"`
	}

	err := f.retry(fetchAttempts, fetchBackoff, func() error {
		return f.get(ctx, "/api/v1/candles?"+query.Encode(), &resp)
	})
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDataFetch, err)
	}

	candles := make([]candle.Candle, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		c := candle.Candle{
			Timestamp: time.Unix(raw.Time, 0).UTC(),
			Open:      raw.Open,
			High:      raw.High,
			Low:       raw.Low,
			Close:     raw.Close,
			Volume:    raw.Volume,
			Symbol:    symbol,
			Timeframe: timeframe,
		}
		if err := c.Validate(); err != nil {
			f.log.Warnf("skipping invalid candle at %v: %v", c.Timestamp, err)
			continue
		}
		candles = append(candles, c)
	}

	return candles, nil
}

// Balance returns the account balance in the account currency.
func (f *FBS) Balance(ctx context.Context) (float64, error) {
	var resp struct {
		Balance float64 `json:"balance"`
	}
	if err := f.get(ctx, "/api/v1/accounts/balance", &resp); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrDataFetch, err)
	}
	return resp.Balance, nil
}

// OpenPositions lists open trades for the symbol.
func (f *FBS) OpenPositions(ctx context.Context, symbol string) ([]Position, error) {
	var resp struct {
		Positions []Position `json:"positions"`
	}
	query := url.Values{"symbol": {symbol}}
	if err := f.get(ctx, "/api/v1/positions?"+query.Encode(), &resp); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDataFetch, err)
	}
	return resp.Positions, nil
}

// OpenTrade submits a market order and returns the broker trade ID.
func (f *FBS) OpenTrade(ctx context.Context, order Order) (string, error) {
	payload := map[string]any{
		"symbol": order.Symbol,
		"side":   string(order.Side),
		"lots":   order.Lots,
	}

	var resp struct {
		TradeID string `json:"trade_id"`
	}
	if err := f.post(ctx, "/api/v1/trades", payload, &resp, true); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}
	if resp.TradeID == "" {
		return "", fmt.Errorf("%w: no trade id returned", ErrOrderRejected)
	}

	f.log.Infof("opened %s %s %.2f lots, trade %s", order.Side, order.Symbol, order.Lots, resp.TradeID)
	return resp.TradeID, nil
}

// SetStopLoss attaches a stop loss, expressed in pips from the open rate.
func (f *FBS) SetStopLoss(ctx context.Context, tradeID string, pips int) error {
	payload := map[string]any{"pips": pips}
	if err := f.post(ctx, "/api/v1/trades/"+tradeID+"/stop-loss", payload, nil, true); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return err
		}
		return fmt.Errorf("%w: stop loss: %v", ErrOrderRejected, err)
	}
	return nil
}

// SetTakeProfit attaches a take profit, expressed in pips from the open rate.
func (f *FBS) SetTakeProfit(ctx context.Context, tradeID string, pips int) error {
	payload := map[string]any{"pips": pips}
	if err := f.post(ctx, "/api/v1/trades/"+tradeID+"/take-profit", payload, nil, true); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return err
		}
		return fmt.Errorf("%w: take profit: %v", ErrOrderRejected, err)
	}
	return nil
}

func (f *FBS) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.creds.Host+path, nil)
	if err != nil {
		return err
	}
	return f.do(req, out, true)
}

func (f *FBS) post(ctx context.Context, path string, payload any, out any, authed bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.creds.Host+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return f.do(req, out, authed)
}

func (f *FBS) do(req *http.Request, out any, authed bool) error {
	if authed {
		f.mu.RLock()
		token := f.token
		f.mu.RUnlock()
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
