// Package engine orchestrates one trading cycle end to end.
//
// A cycle resolves sentiment, screens and scores the configured
// universe, runs buy candidates through the risk gate and executor,
// sweeps current holdings for exits, and emits a structured CycleResult.
// Per-symbol failures are recorded and skipped; the only hard aborts are
// the critical-news gate and the daily-loss breaker (buys only).
//
// Settings are replaced copy-on-write: a cycle snapshots them at entry
// and never observes a torn update.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/executor"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/risk"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/signal"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// Broker is the slice of the broker client the orchestrator consumes.
type Broker interface {
	executor.Broker
	Balance(ctx context.Context) (*types.Balance, error)
	BalanceOverseas(ctx context.Context) (*types.Balance, error)
}

// SentimentSource resolves the cycle's sentiment inputs (the fuser).
type SentimentSource interface {
	Hybrid(ctx context.Context) (*types.HybridSentiment, error)
	Numeric(ctx context.Context) (*types.SentimentSnapshot, error)
}

// Screener classifies one symbol (the fundamentals screener).
type Screener interface {
	Screen(symbol string) (*types.ScreeningResult, error)
}

// UniverseSource names universes and serves fundamentals (the static
// provider).
type UniverseSource interface {
	Universe(name string) ([]string, bool)
	Fundamentals(symbol string) (types.Fundamentals, bool)
}

// BuyMultiplier maps a numeric fear/greed score to the sizing multiplier.
type BuyMultiplier func(score float64) float64

// Settings is the operator-mutable trading configuration. Replaced
// whole via the control surface; effective from the next cycle.
type Settings struct {
	Universe    string            `json:"universe"`
	DryRun      bool              `json:"dry_run"`
	NotionalCap float64           `json:"notional_cap"`
	Risk        config.RiskConfig `json:"risk_limits"`
}

// AutoTrader runs trading cycles. Safe for concurrent RunCycle and
// ScanOnly calls; concurrent cycles share the broker client and the
// daily trade budget.
type AutoTrader struct {
	broker     Broker
	sentiment  SentimentSource
	screener   Screener
	universe   UniverseSource
	signals    *signal.Engine
	exec       *executor.Executor
	gate       *risk.Gate
	multiplier BuyMultiplier
	logger     *slog.Logger

	settings atomic.Pointer[Settings]
	now      func() time.Time
}

func NewAutoTrader(
	broker Broker,
	sentiment SentimentSource,
	screener Screener,
	universe UniverseSource,
	signals *signal.Engine,
	exec *executor.Executor,
	gate *risk.Gate,
	multiplier BuyMultiplier,
	settings Settings,
	logger *slog.Logger,
) *AutoTrader {
	a := &AutoTrader{
		broker:     broker,
		sentiment:  sentiment,
		screener:   screener,
		universe:   universe,
		signals:    signals,
		exec:       exec,
		gate:       gate,
		multiplier: multiplier,
		logger:     logger.With("component", "engine"),
		now:        time.Now,
	}
	a.settings.Store(&settings)
	return a
}

// Settings returns the current settings snapshot.
func (a *AutoTrader) Settings() Settings {
	return *a.settings.Load()
}

// UpdateSettings atomically replaces the settings. In-flight cycles keep
// their entry snapshot, risk limits included; the next cycle sees the
// new values.
func (a *AutoTrader) UpdateSettings(s Settings) {
	a.settings.Store(&s)
	a.logger.Info("settings replaced",
		"universe", s.Universe,
		"dry_run", s.DryRun,
		"notional_cap", s.NotionalCap,
	)
}

// scanOutcome is the universe pass shared by RunCycle and ScanOnly.
type scanOutcome struct {
	signals []types.TradeSignal
	buys    []types.TradeSignal
	scanned int
	errors  []string
}

// RunCycle performs one full trading cycle. It returns an error only for
// cycle-level catastrophes (sentiment entirely dark, unknown universe,
// balance fetch failure); everything per-symbol lands in the result.
func (a *AutoTrader) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	settings := a.Settings()
	result := newCycleResult(a.now(), settings.DryRun)

	hybrid, err := a.sentiment.Hybrid(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve sentiment: %w", err)
	}
	result.Sentiment = hybrid

	if hybrid.NewsUrgency == types.UrgencyCritical {
		result.Status = types.CycleAborted
		result.Reason = "critical news urgency, cycle aborted"
		a.logger.Warn("cycle aborted on critical news")
		return result, nil
	}

	scan, err := a.scanUniverse(ctx, settings, hybrid)
	if err != nil {
		return nil, err
	}
	result.Scanned = scan.scanned
	result.BuySignals = scan.buys
	result.Errors = scan.errors

	balance, err := a.fetchBalance(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	equity := balance.Summary.TotalEval
	exposure := equity - balance.Summary.Cash

	buysAllowed := true
	if a.gate.ObserveEquity(equity, settings.Risk) {
		buysAllowed = false
		result.Errors = append(result.Errors, "daily loss breaker tripped, buys suspended")
	}

	if buysAllowed {
		a.executeBuys(ctx, settings, hybrid, scan.buys, equity, &exposure, result)
	}

	a.sweepHoldings(ctx, settings, hybrid, balance, result)

	result.Status = types.CycleOK
	a.logger.Info("cycle complete",
		"scanned", result.Scanned,
		"buy_signals", len(result.BuySignals),
		"executed_buys", len(result.ExecutedBuys),
		"executed_sells", len(result.ExecutedSells),
		"errors", len(result.Errors),
		"dry_run", result.DryRun,
	)
	return result, nil
}

// ScanOnly runs the universe pass without orders or the holdings sweep.
func (a *AutoTrader) ScanOnly(ctx context.Context) ([]types.TradeSignal, error) {
	settings := a.Settings()

	hybrid, err := a.sentiment.Hybrid(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve sentiment: %w", err)
	}

	scan, err := a.scanUniverse(ctx, settings, hybrid)
	if err != nil {
		return nil, err
	}
	return scan.signals, nil
}

// scanUniverse screens and scores every symbol. Failures are collected,
// never fatal.
func (a *AutoTrader) scanUniverse(ctx context.Context, settings Settings, hybrid *types.HybridSentiment) (*scanOutcome, error) {
	symbols, ok := a.universe.Universe(settings.Universe)
	if !ok {
		return nil, fmt.Errorf("unknown universe %q", settings.Universe)
	}

	out := &scanOutcome{}
	for _, symbol := range symbols {
		sig, err := a.evaluateSymbol(ctx, symbol, settings, hybrid, 0)
		if err != nil {
			out.errors = append(out.errors, fmt.Sprintf("%s: %v", symbol, err))
			a.logger.Warn("symbol skipped", "symbol", symbol, "error", err)
			continue
		}
		out.scanned++
		out.signals = append(out.signals, *sig)
		if sig.Type == types.SignalBuy || sig.Type == types.StrongBuy {
			out.buys = append(out.buys, *sig)
		}
	}

	// Buys run highest score first; ties break on symbol.
	sort.Slice(out.buys, func(i, j int) bool {
		if out.buys[i].TotalScore != out.buys[j].TotalScore {
			return out.buys[i].TotalScore > out.buys[j].TotalScore
		}
		return out.buys[i].Symbol < out.buys[j].Symbol
	})
	return out, nil
}

// evaluateSymbol resolves screening, quote, and the composite signal for
// one symbol.
func (a *AutoTrader) evaluateSymbol(ctx context.Context, symbol string, settings Settings, hybrid *types.HybridSentiment, heldQty int64) (*types.TradeSignal, error) {
	f, ok := a.universe.Fundamentals(symbol)
	if !ok {
		return nil, fmt.Errorf("no fundamentals")
	}

	screening, err := a.screener.Screen(symbol)
	if err != nil {
		return nil, fmt.Errorf("screen: %w", err)
	}

	quote, err := a.quote(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	return a.signals.Evaluate(signal.Input{
		Fundamentals: f,
		Screening:    screening,
		Hybrid:       hybrid,
		Quote:        quote,
		NotionalCap:  settings.NotionalCap,
		HeldQty:      heldQty,
	}), nil
}

// executeBuys walks the sorted candidates through the gate and executor,
// tracking exposure as accepted orders consume headroom.
func (a *AutoTrader) executeBuys(ctx context.Context, settings Settings, hybrid *types.HybridSentiment, buys []types.TradeSignal, equity float64, exposure *float64, result *types.CycleResult) {
	mult := a.multiplier(hybrid.Snapshot.Score)

	for i := range buys {
		sig := &buys[i]
		env := executor.Env{
			Equity:      equity,
			Exposure:    *exposure,
			Multiplier:  mult,
			NotionalCap: settings.NotionalCap,
			DryRun:      settings.DryRun,
			Exchange:    a.exchangeFor(sig.Symbol),
			Limits:      settings.Risk,
		}
		rec, err := a.exec.ExecuteBuy(ctx, sig, env)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: buy: %v", sig.Symbol, err))
			continue
		}
		if rec == nil {
			continue
		}
		result.ExecutedBuys = append(result.ExecutedBuys, *rec)
		*exposure += rec.Notional
	}
}

// fetchBalance picks the venue matching the universe's symbol kind.
func (a *AutoTrader) fetchBalance(ctx context.Context, settings Settings) (*types.Balance, error) {
	symbols, ok := a.universe.Universe(settings.Universe)
	if ok && len(symbols) > 0 && types.IsOverseas(symbols[0]) {
		return a.broker.BalanceOverseas(ctx)
	}
	return a.broker.Balance(ctx)
}

func (a *AutoTrader) quote(ctx context.Context, f types.Fundamentals) (*types.Quote, error) {
	if types.IsOverseas(f.Symbol) {
		return a.broker.QuoteOverseas(ctx, f.Symbol, f.Exchange)
	}
	return a.broker.Quote(ctx, f.Symbol)
}

func (a *AutoTrader) exchangeFor(symbol string) types.Exchange {
	if f, ok := a.universe.Fundamentals(symbol); ok {
		return f.Exchange
	}
	return ""
}

func newCycleResult(now time.Time, dryRun bool) *types.CycleResult {
	return &types.CycleResult{
		Timestamp:     now.Format(time.RFC3339),
		BuySignals:    []types.TradeSignal{},
		SellSignals:   []types.TradeSignal{},
		ExecutedBuys:  []types.ExecutionRecord{},
		ExecutedSells: []types.ExecutionRecord{},
		DryRun:        dryRun,
	}
}
