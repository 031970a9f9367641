package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/executor"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/risk"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/screener"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/sentiment"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/signal"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

type stubBroker struct {
	quotes     map[string]types.Quote
	balance    types.Balance
	balanceErr error
	orders     int
	lastExch   types.Exchange
	onQuote    func(symbol string) // fires before each quote resolves
}

func (b *stubBroker) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	if b.onQuote != nil {
		b.onQuote(symbol)
	}
	q, ok := b.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &q, nil
}

func (b *stubBroker) QuoteOverseas(ctx context.Context, symbol string, exch types.Exchange) (*types.Quote, error) {
	b.lastExch = exch
	return b.Quote(ctx, symbol)
}

func (b *stubBroker) PlaceOrder(ctx context.Context, order types.Order) (*types.OrderReceipt, error) {
	b.orders++
	return &types.OrderReceipt{OrderNo: "0000000001"}, nil
}

func (b *stubBroker) PlaceOrderOverseas(ctx context.Context, order types.Order) (*types.OrderReceipt, error) {
	b.orders++
	return &types.OrderReceipt{OrderNo: "0000000002"}, nil
}

func (b *stubBroker) Balance(ctx context.Context) (*types.Balance, error) {
	if b.balanceErr != nil {
		return nil, b.balanceErr
	}
	bal := b.balance
	return &bal, nil
}

func (b *stubBroker) BalanceOverseas(ctx context.Context) (*types.Balance, error) {
	return b.Balance(ctx)
}

type stubSentiment struct {
	hybrid types.HybridSentiment
}

func (s *stubSentiment) Hybrid(ctx context.Context) (*types.HybridSentiment, error) {
	h := s.hybrid
	return &h, nil
}

func (s *stubSentiment) Numeric(ctx context.Context) (*types.SentimentSnapshot, error) {
	snap := s.hybrid.Snapshot
	return &snap, nil
}

type stubUniverse struct {
	symbols []string
	funds   map[string]types.Fundamentals
}

func (u *stubUniverse) Universe(name string) ([]string, bool) {
	if name != "test" {
		return nil, false
	}
	return u.symbols, true
}

func (u *stubUniverse) Fundamentals(symbol string) (types.Fundamentals, bool) {
	f, ok := u.funds[symbol]
	return f, ok
}

func fearful(score float64) types.HybridSentiment {
	return types.HybridSentiment{
		HybridScore:   sentiment.Remap(score),
		NumericScore:  sentiment.Remap(score),
		NumericWeight: 1.0,
		Snapshot: types.SentimentSnapshot{
			Score: score,
			Class: sentiment.Classify(score),
		},
	}
}

func undervalued(symbol, name string) types.Fundamentals {
	return types.Fundamentals{
		Symbol: symbol, Name: name, Sector: "auto",
		PER: 6, ROE: 12, OperatingMargin: 9, RevenueGrowthYoY: 5, DividendYield: 2,
	}
}

// deepDip is a quote sitting on its intraday low after a 5% drop; with
// fearful sentiment it scores 84.
func deepDip(symbol string) types.Quote {
	return types.Quote{Symbol: symbol, Price: 68_000, ChangePct: -5, High: 72_000, Low: 68_000}
}

type harness struct {
	trader *AutoTrader
	broker *stubBroker
	gate   *risk.Gate
}

func newHarness(t *testing.T, broker *stubBroker, senti *stubSentiment, uni *stubUniverse, riskCfg config.RiskConfig) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	scr := screener.New(config.ScreenerConfig{
		ValueTrapROE:      5.0,
		UndervaluedROE:    10.0,
		PERDiscountRatio:  0.7,
		DividendThreshold: 1.5,
		DomesticSectors: map[string]types.SectorBenchmark{
			"auto":    {AvgPER: 10, AvgOperatingMargin: 6},
			"default": {AvgPER: 12, AvgOperatingMargin: 8},
		},
		OverseasSectors: map[string]types.SectorBenchmark{
			"default": {AvgPER: 20, AvgOperatingMargin: 12},
		},
	}, uni, logger)

	gate := risk.NewGate(logger)
	exec := executor.New(broker, gate, logger)

	trader := NewAutoTrader(
		broker, senti, scr, uni,
		signal.New(logger), exec, gate, sentiment.BuyMultiplier,
		Settings{Universe: "test", DryRun: true, NotionalCap: 1_000_000, Risk: riskCfg},
		logger,
	)
	return &harness{trader: trader, broker: broker, gate: gate}
}

func defaultRisk() config.RiskConfig {
	return config.RiskConfig{
		MaxDailyTrades:           10,
		MaxPositionFraction:      0.10,
		MaxTotalPositionFraction: 0.80,
		MaxDailyLossFraction:     0.03,
		MinBuyScore:              35,
		MaxSellScore:             -20,
	}
}

func flatBalance() types.Balance {
	return types.Balance{Summary: types.BalanceSummary{Cash: 100_000_000, TotalEval: 100_000_000}}
}

func TestStrongBuyOnExtremeFearCycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		&stubBroker{
			quotes:  map[string]types.Quote{"005930": deepDip("005930")},
			balance: flatBalance(),
		},
		&stubSentiment{hybrid: fearful(10)},
		&stubUniverse{
			symbols: []string{"005930"},
			funds:   map[string]types.Fundamentals{"005930": undervalued("005930", "Samsung Electronics")},
		},
		defaultRisk(),
	)

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.CycleOK {
		t.Fatalf("status = %s: %+v", result.Status, result)
	}
	if len(result.BuySignals) != 1 || result.BuySignals[0].Type != types.StrongBuy {
		t.Fatalf("buy signals = %+v, want one strong_buy", result.BuySignals)
	}
	if got := result.BuySignals[0].TotalScore; got != 84 {
		t.Errorf("score = %v, want 84", got)
	}
	if len(result.ExecutedBuys) != 1 {
		t.Fatalf("executed buys = %d, want 1", len(result.ExecutedBuys))
	}
	rec := result.ExecutedBuys[0]
	if !rec.DryRun || h.broker.orders != 0 {
		t.Error("dry-run cycle reached the broker")
	}
	if rec.Notional > 1_000_000 {
		t.Errorf("notional %v breaches the cap", rec.Notional)
	}
}

func TestValueTrapProducesNoOrder(t *testing.T) {
	t.Parallel()
	trap := types.Fundamentals{
		Symbol: "005490", Name: "POSCO Holdings", Sector: "auto",
		PER: 5, ROE: 3, RevenueGrowthYoY: -5,
	}
	h := newHarness(t,
		&stubBroker{
			quotes:  map[string]types.Quote{"005490": deepDip("005490")},
			balance: flatBalance(),
		},
		&stubSentiment{hybrid: fearful(20)},
		&stubUniverse{symbols: []string{"005490"}, funds: map[string]types.Fundamentals{"005490": trap}},
		defaultRisk(),
	)

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.BuySignals) != 0 || len(result.ExecutedBuys) != 0 {
		t.Errorf("value trap traded: %+v", result)
	}

	signals, err := h.trader.ScanOnly(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 || signals[0].Type != types.Hold || signals[0].TotalScore != 0 {
		t.Errorf("scan = %+v, want a single zero-score hold", signals)
	}
}

func TestCriticalNewsAbortsCycle(t *testing.T) {
	t.Parallel()
	hybrid := fearful(50)
	hybrid.NewsAvailable = true
	hybrid.NewsUrgency = types.UrgencyCritical

	h := newHarness(t,
		&stubBroker{
			quotes:  map[string]types.Quote{"005930": deepDip("005930")},
			balance: flatBalance(),
		},
		&stubSentiment{hybrid: hybrid},
		&stubUniverse{
			symbols: []string{"005930"},
			funds:   map[string]types.Fundamentals{"005930": undervalued("005930", "Samsung Electronics")},
		},
		defaultRisk(),
	)

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.CycleAborted {
		t.Fatalf("status = %s, want aborted", result.Status)
	}
	if result.Scanned != 0 || len(result.BuySignals) != 0 || len(result.ExecutedBuys) != 0 {
		t.Errorf("aborted cycle still scanned/traded: %+v", result)
	}
	if result.Sentiment == nil {
		t.Error("aborted cycle lost its sentiment block")
	}
}

func TestTakeProfitOnHolding(t *testing.T) {
	t.Parallel()
	balance := flatBalance()
	balance.Positions = []types.Position{{
		Symbol: "005930", Name: "Samsung Electronics",
		Quantity: 10, AvgPrice: 60_000, CurrentPrice: 69_600, PnLPct: 16,
	}}

	h := newHarness(t,
		&stubBroker{
			quotes:  map[string]types.Quote{"005930": {Symbol: "005930", Price: 69_600, High: 70_000, Low: 69_000}},
			balance: balance,
		},
		&stubSentiment{hybrid: fearful(50)},
		&stubUniverse{symbols: []string{}, funds: map[string]types.Fundamentals{}},
		defaultRisk(),
	)

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.SellSignals) != 1 {
		t.Fatalf("sell signals = %+v, want 1", result.SellSignals)
	}
	sig := result.SellSignals[0]
	if sig.TotalScore != -40 || !strings.Contains(sig.Reason, "take-profit") {
		t.Errorf("signal = %+v, want take-profit at -40", sig)
	}
	if len(result.ExecutedSells) != 1 || !result.ExecutedSells[0].DryRun {
		t.Fatalf("executed sells = %+v, want one dry-run record", result.ExecutedSells)
	}
	if result.ExecutedSells[0].Quantity != 10 {
		t.Errorf("sell qty = %d, want the full held 10", result.ExecutedSells[0].Quantity)
	}
	if h.broker.orders != 0 {
		t.Error("dry-run sell reached the broker")
	}
}

func TestStopLossOnHolding(t *testing.T) {
	t.Parallel()
	balance := flatBalance()
	balance.Positions = []types.Position{{
		Symbol: "005930", Quantity: 4, PnLPct: -7.2,
	}}

	h := newHarness(t,
		&stubBroker{
			quotes:  map[string]types.Quote{"005930": {Symbol: "005930", Price: 55_000, High: 56_000, Low: 54_500}},
			balance: balance,
		},
		&stubSentiment{hybrid: fearful(50)},
		&stubUniverse{symbols: []string{}, funds: map[string]types.Fundamentals{}},
		defaultRisk(),
	)

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.SellSignals) != 1 {
		t.Fatalf("sell signals = %+v, want 1", result.SellSignals)
	}
	sig := result.SellSignals[0]
	if sig.Type != types.StrongSell || sig.TotalScore != -80 || !strings.Contains(sig.Reason, "stop-loss") {
		t.Errorf("signal = %+v, want stop-loss strong_sell at -80", sig)
	}
}

func TestDailyTradeCapStopsExecutionNotSignals(t *testing.T) {
	t.Parallel()
	symbols := []string{"100001", "100002", "100003", "100004", "100005"}
	uni := &stubUniverse{symbols: symbols, funds: map[string]types.Fundamentals{}}
	quotes := map[string]types.Quote{}
	for i, s := range symbols {
		uni.funds[s] = undervalued(s, fmt.Sprintf("Test Co %d", i+1))
		quotes[s] = deepDip(s)
	}

	riskCfg := defaultRisk()
	riskCfg.MaxDailyTrades = 2

	h := newHarness(t,
		&stubBroker{quotes: quotes, balance: flatBalance()},
		&stubSentiment{hybrid: fearful(10)},
		uni,
		riskCfg,
	)

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.BuySignals) != 5 {
		t.Fatalf("buy signals = %d, want all 5", len(result.BuySignals))
	}
	if len(result.ExecutedBuys) != 2 {
		t.Fatalf("executed buys = %d, want the capped 2", len(result.ExecutedBuys))
	}
	if h.gate.TradesToday() != 2 {
		t.Errorf("daily counter = %d, want 2", h.gate.TradesToday())
	}

	executed := map[string]bool{}
	for _, rec := range result.ExecutedBuys {
		executed[rec.Symbol] = true
	}
	var skipped int
	for _, sig := range result.BuySignals {
		if !executed[sig.Symbol] {
			skipped++
		}
	}
	if skipped != 3 {
		t.Errorf("skipped candidates = %d, want 3 still listed as signals", skipped)
	}
}

func TestLossBreakerSuspendsBuysNotSells(t *testing.T) {
	t.Parallel()
	balance := flatBalance()
	balance.Positions = []types.Position{{Symbol: "005930", Quantity: 10, PnLPct: 16}}

	h := newHarness(t,
		&stubBroker{
			quotes: map[string]types.Quote{
				"005930": {Symbol: "005930", Price: 69_600, High: 70_000, Low: 69_000},
				"100001": deepDip("100001"),
			},
			balance: balance,
		},
		&stubSentiment{hybrid: fearful(10)},
		&stubUniverse{
			symbols: []string{"100001"},
			funds:   map[string]types.Fundamentals{"100001": undervalued("100001", "Test Co")},
		},
		defaultRisk(),
	)

	// A higher mark earlier in the day puts the account 9% under peak.
	h.gate.ObserveEquity(110_000_000, defaultRisk())

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ExecutedBuys) != 0 {
		t.Errorf("executed buys = %d with the breaker tripped, want 0", len(result.ExecutedBuys))
	}
	if len(result.ExecutedSells) != 1 {
		t.Errorf("executed sells = %d, want the exit to proceed", len(result.ExecutedSells))
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "loss breaker") {
			found = true
		}
	}
	if !found {
		t.Error("breaker trip not recorded in the result")
	}
}

func TestBalanceFailureIsCatastrophic(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		&stubBroker{
			quotes:     map[string]types.Quote{"005930": deepDip("005930")},
			balanceErr: fmt.Errorf("connection reset"),
		},
		&stubSentiment{hybrid: fearful(50)},
		&stubUniverse{
			symbols: []string{"005930"},
			funds:   map[string]types.Fundamentals{"005930": undervalued("005930", "Samsung Electronics")},
		},
		defaultRisk(),
	)

	if _, err := h.trader.RunCycle(context.Background()); err == nil {
		t.Fatal("balance failure did not surface")
	}
}

func TestSettingsSwapTakesEffectNextCycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t,
		&stubBroker{
			quotes:  map[string]types.Quote{"005930": deepDip("005930")},
			balance: flatBalance(),
		},
		&stubSentiment{hybrid: fearful(10)},
		&stubUniverse{
			symbols: []string{"005930"},
			funds:   map[string]types.Fundamentals{"005930": undervalued("005930", "Samsung Electronics")},
		},
		defaultRisk(),
	)

	s := h.trader.Settings()
	s.Risk.MinBuyScore = 95 // nothing clears this bar
	h.trader.UpdateSettings(s)

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ExecutedBuys) != 0 {
		t.Errorf("executed buys = %d under the raised threshold, want 0", len(result.ExecutedBuys))
	}
	if len(result.BuySignals) != 1 {
		t.Errorf("buy signals = %d, want the signal still reported", len(result.BuySignals))
	}
}

func TestMidCycleSettingsSwapDoesNotChangeGating(t *testing.T) {
	t.Parallel()
	symbols := []string{"100001", "100002"}
	uni := &stubUniverse{symbols: symbols, funds: map[string]types.Fundamentals{}}
	quotes := map[string]types.Quote{}
	for i, s := range symbols {
		uni.funds[s] = undervalued(s, fmt.Sprintf("Test Co %d", i+1))
		quotes[s] = deepDip(s)
	}

	broker := &stubBroker{quotes: quotes, balance: flatBalance()}
	h := newHarness(t, broker, &stubSentiment{hybrid: fearful(10)}, uni, defaultRisk())

	// An operator raises the bar while the cycle is in flight; the cycle
	// must keep gating on its entry snapshot.
	var swapped bool
	broker.onQuote = func(string) {
		if swapped {
			return
		}
		swapped = true
		s := h.trader.Settings()
		s.Risk.MinBuyScore = 95
		h.trader.UpdateSettings(s)
	}

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.BuySignals) != 2 {
		t.Fatalf("buy signals = %d, want 2", len(result.BuySignals))
	}
	if len(result.ExecutedBuys) != 2 {
		t.Errorf("executed buys = %d, want both under the entry snapshot", len(result.ExecutedBuys))
	}

	// The next cycle picks up the raised threshold.
	result, err = h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ExecutedBuys) != 0 {
		t.Errorf("executed buys = %d on the next cycle, want 0", len(result.ExecutedBuys))
	}
}

func TestOverseasExitUsesPositionVenue(t *testing.T) {
	t.Parallel()
	balance := flatBalance()
	balance.Positions = []types.Position{{
		Symbol: "AMD", Name: "Advanced Micro Devices",
		Quantity: 5, PnLPct: 12, Exchange: types.ExchangeNASD,
	}}

	// AMD is held but not in the scan universe, so the fundamentals
	// table cannot name its venue.
	h := newHarness(t,
		&stubBroker{
			quotes:  map[string]types.Quote{"AMD": {Symbol: "AMD", Price: 180.5, High: 182, Low: 179}},
			balance: balance,
		},
		&stubSentiment{hybrid: fearful(50)},
		&stubUniverse{symbols: []string{}, funds: map[string]types.Fundamentals{}},
		defaultRisk(),
	)

	result, err := h.trader.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ExecutedSells) != 1 {
		t.Fatalf("executed sells = %+v, want the take-profit exit", result.ExecutedSells)
	}
	if h.broker.lastExch != types.ExchangeNASD {
		t.Errorf("requote venue = %q, want the position's %q", h.broker.lastExch, types.ExchangeNASD)
	}
}
