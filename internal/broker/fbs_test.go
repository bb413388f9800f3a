package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFBS(t *testing.T, handler http.HandlerFunc) *FBS {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewFBS(Credentials{
		UserID:      "12345",
		Password:    "secret",
		Host:        server.URL,
		AccountType: "demo",
	})
}

func TestLogin(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/sessions", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "12345", payload["user_id"])
		assert.Equal(t, "demo", payload["account_type"])

		json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	})

	require.NoError(t, fbs.Login(context.Background()))
	assert.Equal(t, "tok-1", fbs.token)
}

func TestLoginFailure(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusForbidden)
	})

	err := fbs.Login(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
}

func TestLoginEmptyToken(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})

	err := fbs.Login(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
}

func TestCandles(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/candles", r.URL.Path)
		assert.Equal(t, "EURUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "H1", r.URL.Query().Get("period"))
		assert.Equal(t, "100", r.URL.Query().Get("count"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"candles": []map[string]any{
				{"time": base.Unix(), "open": 1.08, "high": 1.09, "low": 1.07, "close": 1.085, "volume": 100},
				{"time": base.Add(time.Hour).Unix(), "open": 1.085, "high": 1.10, "low": 1.08, "close": 1.09, "volume": 120},
				// Broken bar, must be skipped.
				{"time": base.Add(2 * time.Hour).Unix(), "open": 0, "high": 0, "low": 0, "close": 0, "volume": 0},
			},
		})
	})
	fbs.token = "tok-1"

	candles, err := fbs.Candles(context.Background(), "EURUSD", "1h", 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, base, candles[0].Timestamp)
	assert.Equal(t, 1.085, candles[0].Close)
	assert.Equal(t, "EURUSD", candles[0].Symbol)
	assert.Equal(t, "1h", candles[0].Timeframe)
}

func TestCandlesUnsupportedTimeframe(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := fbs.Candles(context.Background(), "EURUSD", "7h", 100)
	assert.ErrorIs(t, err, ErrDataFetch)
}

func TestCandlesSessionExpired(t *testing.T) {
	calls := 0
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "token expired", http.StatusUnauthorized)
	})
	fbs.token = "stale"

	_, err := fbs.Candles(context.Background(), "EURUSD", "1h", 100)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, calls, "session expiry must not be retried")
}

func TestBalance(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/accounts/balance", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]float64{"balance": 10000})
	})
	fbs.token = "tok-1"

	balance, err := fbs.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000.0, balance)
}

func TestBalanceFetchError(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	fbs.token = "tok-1"

	_, err := fbs.Balance(context.Background())
	assert.ErrorIs(t, err, ErrDataFetch)
}

func TestOpenPositions(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/positions", r.URL.Path)
		assert.Equal(t, "EURUSD", r.URL.Query().Get("symbol"))
		json.NewEncoder(w).Encode(map[string]any{
			"positions": []map[string]any{
				{"id": "t-9", "symbol": "EURUSD", "side": "BUY", "lots": 0.5},
			},
		})
	})
	fbs.token = "tok-1"

	positions, err := fbs.OpenPositions(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "t-9", positions[0].ID)
	assert.Equal(t, Buy, positions[0].Side)
}

func TestOpenTrade(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/trades", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "EURUSD", payload["symbol"])
		assert.Equal(t, "BUY", payload["side"])
		assert.InDelta(t, 1.0, payload["lots"], 0.0001)

		json.NewEncoder(w).Encode(map[string]string{"trade_id": "t-42"})
	})
	fbs.token = "tok-1"

	tradeID, err := fbs.OpenTrade(context.Background(), Order{
		Symbol: "EURUSD",
		Side:   Buy,
		Lots:   1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "t-42", tradeID)
}

func TestOpenTradeRejected(t *testing.T) {
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not enough margin", http.StatusUnprocessableEntity)
	})
	fbs.token = "tok-1"

	_, err := fbs.OpenTrade(context.Background(), Order{Symbol: "EURUSD", Side: Sell, Lots: 50})
	assert.ErrorIs(t, err, ErrOrderRejected)
}

func TestSetStopLossAndTakeProfit(t *testing.T) {
	var paths []string
	fbs := newTestFBS(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotZero(t, payload["pips"])

		w.WriteHeader(http.StatusNoContent)
	})
	fbs.token = "tok-1"

	require.NoError(t, fbs.SetStopLoss(context.Background(), "t-42", 20))
	require.NoError(t, fbs.SetTakeProfit(context.Background(), "t-42", 40))
	assert.Equal(t, []string{
		"/api/v1/trades/t-42/stop-loss",
		"/api/v1/trades/t-42/take-profit",
	}, paths)
}
