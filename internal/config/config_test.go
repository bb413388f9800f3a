package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FBS_USER_ID", "12345")
	t.Setenv("FBS_PASSWORD", "secret")
	t.Setenv("FBS_HOST", "https://trader.fbs.test")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.FBS.AccountType)
	assert.Equal(t, "EURUSD", cfg.Trading.Symbol)
	assert.Equal(t, "1h", cfg.Trading.Timeframe)
	assert.Equal(t, 2.0, cfg.Trading.RiskPercent)
	assert.Equal(t, 20, cfg.Trading.StopLossPips)
	assert.Equal(t, 14, cfg.Trading.RSIPeriod)
	assert.Equal(t, ":9101", cfg.MetricsAddr)
	assert.Empty(t, cfg.Sessions)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FBS_ACCOUNT_TYPE", "real")
	t.Setenv("TELEGRAM_TOKEN", "bot-token")
	t.Setenv("CHAT_ID", "777")
	t.Setenv("SYMBOL", "GBPUSD")
	t.Setenv("TIMEFRAME", "4h")
	t.Setenv("RISK_PERCENT", "1.5")
	t.Setenv("STOP_LOSS_PIPS", "35")
	t.Setenv("RSI_PERIOD", "9")
	t.Setenv("SESSIONS", "london:7-16")
	t.Setenv("NEWS_BLACKOUT_HOURS", "12,13")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "real", cfg.FBS.AccountType)
	assert.Equal(t, "bot-token", cfg.Telegram.Token)
	assert.Equal(t, "777", cfg.Telegram.ChatID)
	assert.Equal(t, "GBPUSD", cfg.Trading.Symbol)
	assert.Equal(t, "4h", cfg.Trading.Timeframe)
	assert.Equal(t, 1.5, cfg.Trading.RiskPercent)
	assert.Equal(t, 35, cfg.Trading.StopLossPips)
	assert.Equal(t, 9, cfg.Trading.RSIPeriod)
	assert.Equal(t, "london:7-16", cfg.Sessions)
	assert.Equal(t, "12,13", cfg.NewsBlackoutHours)
}

func TestLoadYAMLFileWithEnvOnTop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fbs:
  user_id: "999"
  password: from-file
  host: https://trader.fbs.test
trading:
  symbol: USDJPY
  risk_percent: 0.5
`), 0o600))

	t.Setenv("SYMBOL", "AUDUSD")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "999", cfg.FBS.UserID)
	assert.Equal(t, "from-file", cfg.FBS.Password)
	// Env beats the file.
	assert.Equal(t, "AUDUSD", cfg.Trading.Symbol)
	assert.Equal(t, 0.5, cfg.Trading.RiskPercent)
	// File leaves defaults alone elsewhere.
	assert.Equal(t, 20, cfg.Trading.StopLossPips)
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Setenv("FBS_USER_ID", "")
	t.Setenv("FBS_PASSWORD", "")
	t.Setenv("FBS_HOST", "")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparsable risk", "RISK_PERCENT", "lots"},
		{"unparsable stop loss", "STOP_LOSS_PIPS", "many"},
		{"negative stop loss", "STOP_LOSS_PIPS", "-5"},
		{"zero risk", "RISK_PERCENT", "0"},
		{"period too small", "RSI_PERIOD", "1"},
		{"unknown timeframe", "TIMEFRAME", "7h"},
		{"unknown account type", "FBS_ACCOUNT_TYPE", "paper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	setRequiredEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
