package risk

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/market"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

func testGate() *Gate {
	return NewGate(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func testLimits() config.RiskConfig {
	return config.RiskConfig{
		MaxDailyTrades:           2,
		MaxPositionFraction:      0.10,
		MaxTotalPositionFraction: 0.80,
		MaxDailyLossFraction:     0.03,
		MinBuyScore:              35,
		MaxSellScore:             -20,
	}
}

func buyReq(score float64, suggested int64) BuyRequest {
	return BuyRequest{
		Signal:      &types.TradeSignal{Symbol: "005930", TotalScore: score, SuggestedQty: suggested},
		Price:       70_000,
		Equity:      100_000_000,
		Exposure:    10_000_000,
		Multiplier:  1.0,
		NotionalCap: 1_000_000,
		Limits:      testLimits(),
	}
}

func TestCheckBuyScoreThreshold(t *testing.T) {
	t.Parallel()
	g := testGate()

	if d := g.CheckBuy(buyReq(34.9, 10)); d.Approved {
		t.Error("score below minimum approved")
	}
	if d := g.CheckBuy(buyReq(35, 10)); !d.Approved {
		t.Errorf("score at minimum rejected: %s", d.Reason)
	}
}

func TestCheckBuyDailyBudget(t *testing.T) {
	t.Parallel()
	g := testGate()

	for i := 0; i < 2; i++ {
		if d := g.CheckBuy(buyReq(80, 10)); !d.Approved {
			t.Fatalf("trade %d rejected: %s", i, d.Reason)
		}
		g.RecordTrade()
	}
	if g.TradesToday() != 2 {
		t.Fatalf("counter = %d, want 2", g.TradesToday())
	}
	if d := g.CheckBuy(buyReq(80, 10)); d.Approved {
		t.Error("third trade approved past the daily limit")
	}
}

func TestCounterResetsOnKSTDayBoundary(t *testing.T) {
	t.Parallel()
	g := testGate()

	now := time.Date(2025, 1, 15, 23, 50, 0, 0, market.Seoul)
	g.now = func() time.Time { return now }

	g.RecordTrade()
	g.RecordTrade()
	if d := g.CheckBuy(buyReq(80, 10)); d.Approved {
		t.Fatal("approved past the daily limit")
	}

	now = now.Add(15 * time.Minute) // past KST midnight
	if g.TradesToday() != 0 {
		t.Errorf("counter = %d after day roll, want 0", g.TradesToday())
	}
	if d := g.CheckBuy(buyReq(80, 10)); !d.Approved {
		t.Errorf("fresh day rejected: %s", d.Reason)
	}
}

func TestCheckBuyAggregateExposure(t *testing.T) {
	t.Parallel()
	g := testGate()

	req := buyReq(80, 10)
	req.Exposure = 80_000_000 // exactly the 80% limit
	if d := g.CheckBuy(req); d.Approved {
		t.Error("approved at the aggregate exposure limit")
	}
}

func TestSizingRespectsCapAndFraction(t *testing.T) {
	t.Parallel()
	g := testGate()

	// Suggested 14 at 1.5x gives 21, but the notional cap allows
	// floor(1_000_000 / 70_000) = 14.
	req := buyReq(80, 14)
	req.Multiplier = 1.5
	d := g.CheckBuy(req)
	if !d.Approved || d.Qty != 14 {
		t.Errorf("decision = %+v, want qty 14 (cap bound)", d)
	}
	if float64(d.Qty)*req.Price > req.NotionalCap {
		t.Errorf("qty %d breaches the notional cap", d.Qty)
	}

	// A small account binds on the position fraction instead:
	// floor(5_000_000 * 0.10 / 70_000) = 7.
	req = buyReq(80, 14)
	req.Equity = 5_000_000
	req.Exposure = 0
	d = g.CheckBuy(req)
	if !d.Approved || d.Qty != 7 {
		t.Errorf("decision = %+v, want qty 7 (fraction bound)", d)
	}
}

func TestSizingZeroMultiplierRejects(t *testing.T) {
	t.Parallel()
	g := testGate()

	req := buyReq(80, 14)
	req.Multiplier = 0 // extreme greed sizes buys to zero
	if d := g.CheckBuy(req); d.Approved {
		t.Errorf("approved with qty %d under a zero multiplier", d.Qty)
	}
}

func TestCheckSell(t *testing.T) {
	t.Parallel()
	g := testGate()

	if d := g.CheckSell(&types.TradeSignal{TotalScore: -40, SuggestedQty: 10}, testLimits()); !d.Approved || d.Qty != 10 {
		t.Errorf("sell decision = %+v, want approved qty 10", d)
	}
	if d := g.CheckSell(&types.TradeSignal{TotalScore: -10}, testLimits()); d.Approved {
		t.Error("sell approved above the threshold")
	}
	// Exits ignore the daily budget.
	g.RecordTrade()
	g.RecordTrade()
	if d := g.CheckSell(&types.TradeSignal{TotalScore: -80, SuggestedQty: 5}, testLimits()); !d.Approved {
		t.Error("sell blocked by the trade budget")
	}
}

func TestLossBreaker(t *testing.T) {
	t.Parallel()
	g := testGate()

	if g.ObserveEquity(100_000_000, testLimits()) {
		t.Fatal("breaker tripped on first mark")
	}
	if g.ObserveEquity(97_500_000, testLimits()) { // 2.5% drawdown, limit 3%
		t.Fatal("breaker tripped under the limit")
	}
	if !g.ObserveEquity(96_500_000, testLimits()) { // 3.5% drawdown
		t.Fatal("breaker not tripped past the limit")
	}

	// A new KST day clears the peak.
	now := time.Date(2025, 1, 16, 9, 0, 0, 0, market.Seoul)
	g.now = func() time.Time { return now }
	if g.ObserveEquity(96_500_000, testLimits()) {
		t.Error("breaker carried over the day boundary")
	}
}

func TestLimitsTravelWithTheRequest(t *testing.T) {
	t.Parallel()
	g := testGate()

	// The same gate serves callers holding different snapshots; only the
	// request's own limits decide.
	strict := buyReq(60, 10)
	strict.Limits.MinBuyScore = 95
	if d := g.CheckBuy(strict); d.Approved {
		t.Error("approved against the strict snapshot")
	}
	if d := g.CheckBuy(buyReq(60, 10)); !d.Approved {
		t.Errorf("rejected against the lax snapshot: %s", d.Reason)
	}
}
