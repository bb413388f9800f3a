// Package config
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/amirphl/forex-rsi-bot/internal/tfutils"
)

// Config is the process configuration, loaded once at startup and immutable
// afterwards. Environment variables override the optional YAML file.
type Config struct {
	FBS struct {
		UserID      string `yaml:"user_id" validate:"required"`
		Password    string `yaml:"password" validate:"required"`
		Host        string `yaml:"host" validate:"required,url"`
		AccountType string `yaml:"account_type" default:"demo" validate:"oneof=demo real"`
	} `yaml:"fbs"`

	Telegram struct {
		// Both empty means alerts go to the log only.
		Token  string `yaml:"token"`
		ChatID string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Trading struct {
		Symbol       string  `yaml:"symbol" default:"EURUSD" validate:"required"`
		Timeframe    string  `yaml:"timeframe" default:"1h" validate:"required"`
		RiskPercent  float64 `yaml:"risk_percent" default:"2" validate:"gt=0,lte=100"`
		StopLossPips int     `yaml:"stop_loss_pips" default:"20" validate:"gt=0"`
		RSIPeriod    int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
	} `yaml:"trading"`

	// Sessions like "london:7-16,newyork:12-21"; empty means always open.
	Sessions string `yaml:"sessions"`
	// NewsBlackoutHours like "12,13"; UTC hours with no trading.
	NewsBlackoutHours string `yaml:"news_blackout_hours"`

	MetricsAddr string `yaml:"metrics_addr" default:":9101"`
}

// Load builds the configuration: struct defaults, then the YAML file when a
// path is given, then environment variables on top.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("setting defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !tfutils.IsValidTimeframe(cfg.Trading.Timeframe) {
		return nil, fmt.Errorf("invalid config: unsupported timeframe %q", cfg.Trading.Timeframe)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.FBS.UserID, "FBS_USER_ID")
	setString(&cfg.FBS.Password, "FBS_PASSWORD")
	setString(&cfg.FBS.Host, "FBS_HOST")
	setString(&cfg.FBS.AccountType, "FBS_ACCOUNT_TYPE")
	setString(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
	setString(&cfg.Telegram.ChatID, "CHAT_ID")
	setString(&cfg.Trading.Symbol, "SYMBOL")
	setString(&cfg.Trading.Timeframe, "TIMEFRAME")
	setString(&cfg.Sessions, "SESSIONS")
	setString(&cfg.NewsBlackoutHours, "NEWS_BLACKOUT_HOURS")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")

	if err := setFloat(&cfg.Trading.RiskPercent, "RISK_PERCENT"); err != nil {
		return err
	}
	if err := setInt(&cfg.Trading.StopLossPips, "STOP_LOSS_PIPS"); err != nil {
		return err
	}
	return setInt(&cfg.Trading.RSIPeriod, "RSI_PERIOD")
}

func setString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*target = value
	}
}

func setFloat(target *float64, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", key, value, err)
	}
	*target = parsed
	return nil
}

func setInt(target *int, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", key, value, err)
	}
	*target = parsed
	return nil
}
