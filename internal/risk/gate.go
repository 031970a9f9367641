// Package risk enforces the per-cycle global trading constraints.
//
// The gate checks each buy candidate in a fixed order (signal score,
// daily trade budget, aggregate exposure, then position sizing) and
// rejects on the first failure. It also owns the daily trade counter and
// the peak-equity daily-loss circuit breaker; both reset on the KST
// calendar-day boundary.
package risk

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/market"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// BuyRequest is one candidate evaluated by the gate. Quantity sizing
// starts from the signal's suggestion scaled by the sentiment multiplier.
// Limits carry the caller's per-cycle config snapshot: a settings
// replacement mid-cycle never changes gating for that cycle.
type BuyRequest struct {
	Signal      *types.TradeSignal
	Price       float64           // live quote at decision time
	Equity      float64           // total account evaluation
	Exposure    float64           // aggregate position value, pre-order
	Multiplier  float64           // sentiment buy multiplier
	NotionalCap float64           // per-symbol cap in local currency
	Limits      config.RiskConfig // the cycle's risk snapshot
}

// Decision is the gate's verdict. Qty is meaningful only when Approved.
type Decision struct {
	Approved bool
	Qty      int64
	Reason   string
}

// Gate holds the cross-cycle trading state: the daily trade counter and
// the equity peak, both keyed to the KST day. Limits are not gate state;
// each call carries the caller's config snapshot. Safe for concurrent use.
type Gate struct {
	logger *slog.Logger

	mu          sync.Mutex
	tradeDay    string
	tradesToday int
	peakEquity  float64

	now func() time.Time
}

func NewGate(logger *slog.Logger) *Gate {
	return &Gate{
		logger: logger.With("component", "risk"),
		now:    time.Now,
	}
}

// CheckBuy evaluates one buy candidate against req.Limits. Checks run in
// order; the first failure rejects. On approval the quantity may be
// reduced to fit the notional cap and the per-position equity fraction.
func (g *Gate) CheckBuy(req BuyRequest) Decision {
	g.mu.Lock()
	g.rollDay()
	trades := g.tradesToday
	g.mu.Unlock()
	cfg := req.Limits

	if req.Signal.TotalScore < cfg.MinBuyScore {
		return reject("score %.1f below minimum %.1f", req.Signal.TotalScore, cfg.MinBuyScore)
	}
	if trades >= cfg.MaxDailyTrades {
		return reject("daily trade limit %d reached", cfg.MaxDailyTrades)
	}
	if req.Equity > 0 && req.Exposure/req.Equity >= cfg.MaxTotalPositionFraction {
		return reject("aggregate exposure %.1f%% at limit %.1f%%",
			req.Exposure/req.Equity*100, cfg.MaxTotalPositionFraction*100)
	}

	qty := sizeOrder(req)
	if qty < 1 {
		return reject("no quantity fits the sizing limits at price %.2f", req.Price)
	}

	return Decision{Approved: true, Qty: qty}
}

// sizeOrder applies the sentiment multiplier then shrinks the quantity
// to the largest integer inside both the notional cap and the
// per-position equity fraction.
func sizeOrder(req BuyRequest) int64 {
	if req.Price <= 0 {
		return 0
	}

	qty := int64(math.Floor(float64(req.Signal.SuggestedQty) * req.Multiplier))

	if maxByCap := int64(math.Floor(req.NotionalCap / req.Price)); qty > maxByCap {
		qty = maxByCap
	}
	if req.Equity > 0 {
		maxByFraction := int64(math.Floor(req.Equity * req.Limits.MaxPositionFraction / req.Price))
		if qty > maxByFraction {
			qty = maxByFraction
		}
	}
	return qty
}

// CheckSell gates a sell signal on the score threshold only; exits are
// never blocked by the trade budget or exposure limits.
func (g *Gate) CheckSell(sig *types.TradeSignal, limits config.RiskConfig) Decision {
	if sig.TotalScore > limits.MaxSellScore {
		return reject("score %.1f above sell threshold %.1f", sig.TotalScore, limits.MaxSellScore)
	}
	return Decision{Approved: true, Qty: sig.SuggestedQty}
}

// RecordTrade counts one executed (or dry-run simulated) order against
// the daily budget.
func (g *Gate) RecordTrade() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollDay()
	g.tradesToday++
}

// TradesToday returns the executed-trade count for the current KST day.
func (g *Gate) TradesToday() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollDay()
	return g.tradesToday
}

// ObserveEquity records an equity mark and reports whether the daily
// drawdown from the day's peak exceeds limits.MaxDailyLossFraction.
// A tripped breaker aborts buys only; sells still proceed.
func (g *Gate) ObserveEquity(equity float64, limits config.RiskConfig) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollDay()

	if equity > g.peakEquity {
		g.peakEquity = equity
	}
	if g.peakEquity <= 0 {
		return false
	}

	drawdown := (g.peakEquity - equity) / g.peakEquity
	if drawdown > limits.MaxDailyLossFraction {
		g.logger.Warn("daily loss breaker tripped",
			"peak_equity", g.peakEquity,
			"equity", equity,
			"drawdown_pct", drawdown*100,
		)
		return true
	}
	return false
}

// rollDay resets the counter and the equity peak when the KST calendar
// day changes. Caller holds g.mu.
func (g *Gate) rollDay() {
	day := market.TradingDay(g.now())
	if day != g.tradeDay {
		g.tradeDay = day
		g.tradesToday = 0
		g.peakEquity = 0
	}
}

func reject(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}
