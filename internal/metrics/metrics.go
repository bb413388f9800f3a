// Package metrics exposes Prometheus instrumentation for the trading loop.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds all Prometheus collectors for the bot.
type Metrics struct {
	CyclesTotal     prometheus.Counter
	OrdersTotal     *prometheus.CounterVec
	CycleErrors     *prometheus.CounterVec
	SkippedCycles   *prometheus.CounterVec
	LastRSI         prometheus.Gauge
	AccountBalance  prometheus.Gauge
	LoopState       prometheus.Gauge
	ReconnectsTotal prometheus.Counter
}

// New registers and returns the bot metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Decision cycles executed.",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders submitted to the broker.",
		}, []string{"side"}),
		CycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_cycle_errors_total",
			Help: "Cycle errors by kind.",
		}, []string{"kind"}),
		SkippedCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_skipped_cycles_total",
			Help: "Cycles that made no decision, by reason.",
		}, []string{"reason"}),
		LastRSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_last_rsi",
			Help: "Most recent RSI value.",
		}),
		AccountBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_account_balance",
			Help: "Most recent account balance.",
		}),
		LoopState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_loop_state",
			Help: "Decision loop state (0=disconnected 1=connecting 2=idle 3=active 4=terminated).",
		}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_reconnects_total",
			Help: "Broker re-login attempts after session loss.",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.OrdersTotal,
		m.CycleErrors,
		m.SkippedCycles,
		m.LastRSI,
		m.AccountBalance,
		m.LoopState,
		m.ReconnectsTotal,
	)

	return m
}

// Serve runs a /metrics endpoint until the context is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) {
	log := logrus.WithField("component", "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("metrics server failed: %v", err)
	}
}
