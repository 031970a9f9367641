// Market Auto Trader — an automated equity trading service driven by
// market sentiment and value screening.
//
// Architecture:
//
//	main.go              — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	engine/engine.go     — orchestrator: sentiment → screen → signal → risk → execute, once per cycle
//	sentiment/fuser.go   — fear/greed index fetch plus LLM news analysis, fused into one score
//	news/rss.go          — RSS headline collector feeding the news analyser
//	screener/screener.go — PER/ROE value screen against sector benchmark tables
//	signal/engine.go     — composite scoring: sentiment + quality + technical, mapped to a signal
//	risk/gate.go         — daily trade budget, exposure limits, sizing, loss circuit breaker
//	executor/executor.go — order submission through the gate; dry-run short-circuit
//	broker/client.go     — REST client for the brokerage API (quotes, balances, orders)
//	scheduler/...        — periodic cycle trigger with market-hours gating
//	api/...              — HTTP control surface and WebSocket event stream
//	store/store.go       — JSON file persistence for settings and cycle history
//
// The cycle never acts on price alone: a buy requires fearful market
// sentiment, an undervalued-but-healthy screen, and a risk gate pass.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/api"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/broker"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/engine"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/executor"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/news"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/risk"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/scheduler"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/screener"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/sentiment"
	sig "github.com/lunara-kim/market-auto-trader-sub000/internal/signal"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/store"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfgPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()
	if p := os.Getenv("TRADER_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	client, err := broker.NewClient(cfg.Broker, logger)
	if err != nil {
		logger.Error("failed to create broker client", "error", err)
		os.Exit(1)
	}

	// Both news legs are optional; either missing collapses sentiment to
	// the numeric index alone.
	var headlines sentiment.HeadlineSource
	if c := news.NewCollector(cfg.News.Feeds, cfg.News.MaxHeadlines, logger); c != nil {
		headlines = c
	}
	var analyzer sentiment.Analyzer
	if a := sentiment.NewNewsAnalyzer(cfg.News, logger); a != nil {
		analyzer = a
	}
	fuser := sentiment.NewFuser(cfg.Sentiment, headlines, analyzer, logger)

	provider := screener.NewStaticProvider()
	scr := screener.New(cfg.Screener, provider, logger)
	signals := sig.New(logger)

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	settings := engine.Settings{
		Universe:    cfg.Trader.Universe,
		DryRun:      cfg.Trader.DryRun,
		NotionalCap: cfg.Trader.NotionalCap,
		Risk:        cfg.Risk,
	}
	if saved, err := st.LoadSettings(); err != nil {
		logger.Warn("persisted settings unreadable, using file config", "error", err)
	} else if saved != nil {
		settings = *saved
		logger.Info("restored persisted settings", "universe", settings.Universe, "dry_run", settings.DryRun)
	}

	gate := risk.NewGate(logger)
	exec := executor.New(client, gate, logger)

	trader := engine.NewAutoTrader(
		client, fuser, scr, provider,
		signals, exec, gate,
		sentiment.BuyMultiplier,
		settings, logger,
	)

	// Scheduled cycles run on this context so an HTTP shutdown never
	// cancels an in-flight cycle; only process exit does.
	cycleCtx, cancelCycles := context.WithCancel(context.Background())
	defer cancelCycles()

	sched := scheduler.New(cycleCtx, trader, logger)

	hub := api.NewHub(logger)
	sched.SetNotify(func(result types.CycleResult) {
		hub.Broadcast(api.NewCycleEvent(result))
	})

	handlers := api.NewHandlers(trader, sched, st, hub, logger)
	server := api.NewServer(cfg.Server, handlers, hub, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	if settings.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}
	logger.Info("auto trader started",
		"addr", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		"universe", settings.Universe,
		"notional_cap", settings.NotionalCap,
		"mock_broker", cfg.Broker.Mock,
		"dry_run", settings.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	received := <-sigCh
	logger.Info("received shutdown signal", "signal", received.String())

	sched.Stop()
	if err := st.SaveHistory(sched.History(0)); err != nil {
		logger.Error("failed to snapshot history", "error", err)
	}
	if err := server.Stop(); err != nil {
		logger.Error("failed to stop server", "error", err)
	}
	cancelCycles()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
