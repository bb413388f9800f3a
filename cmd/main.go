package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/amirphl/forex-rsi-bot/internal/bot"
	"github.com/amirphl/forex-rsi-bot/internal/broker"
	"github.com/amirphl/forex-rsi-bot/internal/config"
	"github.com/amirphl/forex-rsi-bot/internal/metrics"
	"github.com/amirphl/forex-rsi-bot/internal/notifier"
	"github.com/amirphl/forex-rsi-bot/internal/session"
)

func init() {
	configureLogging()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", "", "Path to optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("could not load config: %v", err)
	}

	windows, err := session.ParseWindows(cfg.Sessions)
	if err != nil {
		logrus.Fatalf("could not parse sessions: %v", err)
	}
	blackout, err := session.ParseBlackoutHours(cfg.NewsBlackoutHours)
	if err != nil {
		logrus.Fatalf("could not parse news blackout hours: %v", err)
	}
	gate := session.NewGate(windows, blackout)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	go metrics.Serve(ctx, cfg.MetricsAddr, registry)

	var n notifier.Notifier
	var telegram *notifier.Telegram
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		telegram = notifier.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		n = telegram
	} else {
		logrus.Warn("no telegram credentials, alerts go to the log only")
		n = notifier.NewLogNotifier()
	}

	gateway := broker.NewFBS(broker.Credentials{
		UserID:      cfg.FBS.UserID,
		Password:    cfg.FBS.Password,
		Host:        cfg.FBS.Host,
		AccountType: cfg.FBS.AccountType,
	})

	b, err := bot.New(
		bot.Params{
			Symbol:       cfg.Trading.Symbol,
			Timeframe:    cfg.Trading.Timeframe,
			RiskPercent:  cfg.Trading.RiskPercent,
			StopLossPips: cfg.Trading.StopLossPips,
			RSIPeriod:    cfg.Trading.RSIPeriod,
		},
		gateway,
		n,
		gate,
		bot.NewActivation(),
		m,
	)
	if err != nil {
		logrus.Fatalf("could not create trading bot: %v", err)
	}

	registerCommands(n, cfg, gate, b)

	if telegram != nil {
		go telegram.Poll(ctx)
	}

	if err := b.Run(ctx); err != nil {
		logrus.Fatalf("trading bot terminated: %v", err)
	}
}

func registerCommands(n notifier.Notifier, cfg *config.Config, gate *session.Gate, b *bot.Bot) {
	activation := b.Activation()

	n.Handle("start", func() string {
		activation.Start()
		return "Trading activated. The next decision runs at the coming tick."
	})

	n.Handle("stop", func() string {
		activation.Stop()
		return "Trading deactivated. Open trades are left untouched."
	})

	n.Handle("status", func() string {
		s := b.Status()
		lastCycle := "never"
		if !s.LastCycle.IsZero() {
			lastCycle = s.LastCycle.UTC().Format("2006-01-02 15:04 UTC")
		}
		return fmt.Sprintf(
			"State: %s\nTrading: %v\nLast RSI: %.2f\nLast cycle: %s\nOrders opened: %d",
			s.State, s.Active, s.LastRSI, lastCycle, s.OrdersOpened,
		)
	})

	n.Handle("config", func() string {
		return fmt.Sprintf(
			"Symbol: %s\nTimeframe: %s\nRisk: %.2f%%\nStop loss: %d pips\nTake profit: %d pips\nRSI period: %d\nSessions: %s",
			cfg.Trading.Symbol,
			cfg.Trading.Timeframe,
			cfg.Trading.RiskPercent,
			cfg.Trading.StopLossPips,
			2*cfg.Trading.StopLossPips,
			cfg.Trading.RSIPeriod,
			gate.String(),
		)
	})

	n.Handle("help", func() string {
		return "/start - activate trading\n" +
			"/stop - deactivate trading\n" +
			"/status - loop state, last RSI and order count\n" +
			"/config - trading parameters\n" +
			"/help - this message"
	})
}

func configureLogging() {
	if os.Getenv("LOG_FORMAT") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not parse log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(logLevel)

	logrus.SetOutput(os.Stdout)
}
