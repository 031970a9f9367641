package signal

import (
	"log/slog"
	"os"
	"testing"

	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

func testEngine() *Engine {
	return New(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func eligible() *types.ScreeningResult {
	return &types.ScreeningResult{Symbol: "005930", Quality: types.Undervalued, Eligible: true}
}

func TestIneligibleShortCircuits(t *testing.T) {
	t.Parallel()
	e := testEngine()

	sig := e.Evaluate(Input{
		Fundamentals: types.Fundamentals{Symbol: "005490"},
		Screening:    &types.ScreeningResult{Quality: types.ValueTrap, Reason: "value trap"},
		Hybrid:       &types.HybridSentiment{HybridScore: -80},
		Quote:        &types.Quote{Price: 100, ChangePct: -5, High: 110, Low: 100},
	})
	if sig.Type != types.Hold {
		t.Errorf("type = %s, want hold", sig.Type)
	}
	if sig.TotalScore != 0 {
		t.Errorf("score = %v, want 0", sig.TotalScore)
	}
	if sig.Action != "" {
		t.Errorf("action = %q, want empty", sig.Action)
	}
}

func TestStrongBuyOnExtremeFear(t *testing.T) {
	t.Parallel()
	e := testEngine()

	// Hybrid -80 gives +24 sentiment; -5% prior move gives +20 RSI proxy;
	// price at the intraday low gives +15 from %B. 24 + 25 + 35 = 84.
	sig := e.Evaluate(Input{
		Fundamentals: types.Fundamentals{Symbol: "005930", Name: "Samsung Electronics"},
		Screening:    eligible(),
		Hybrid:       &types.HybridSentiment{HybridScore: -80},
		Quote:        &types.Quote{Price: 68000, ChangePct: -5, High: 72000, Low: 68000},
		NotionalCap:  1_000_000,
	})
	if sig.Type != types.StrongBuy {
		t.Errorf("type = %s, want strong_buy (score %v)", sig.Type, sig.TotalScore)
	}
	if sig.TotalScore != 84 {
		t.Errorf("score = %v, want 84", sig.TotalScore)
	}
	if sig.SentimentScore != 24 || sig.QualityScore != 25 || sig.TechnicalScore != 35 {
		t.Errorf("components = %v/%v/%v, want 24/25/35",
			sig.SentimentScore, sig.QualityScore, sig.TechnicalScore)
	}
	if sig.SuggestedQty != 14 { // 1_000_000 / 68_000
		t.Errorf("suggested qty = %d, want 14", sig.SuggestedQty)
	}
}

func TestMappingMonotone(t *testing.T) {
	t.Parallel()
	rank := map[types.SignalType]int{
		types.StrongSell: 0,
		types.SignalSell: 1,
		types.Hold:       2,
		types.SignalBuy:  3,
		types.StrongBuy:  4,
	}
	prev := rank[mapScore(-100)]
	for s := -99.5; s <= 100; s += 0.5 {
		cur := rank[mapScore(s)]
		if cur < prev {
			t.Fatalf("mapping not monotone at score %v", s)
		}
		prev = cur
	}

	// Threshold edges are exclusive.
	edges := map[float64]types.SignalType{
		70: types.SignalBuy, 70.1: types.StrongBuy,
		35: types.Hold, 35.1: types.SignalBuy,
		-20: types.Hold, -20.1: types.SignalSell,
		-60: types.SignalSell, -60.1: types.StrongSell,
	}
	for s, want := range edges {
		if got := mapScore(s); got != want {
			t.Errorf("mapScore(%v) = %s, want %s", s, got, want)
		}
	}
}

func TestSentimentFallbackUsesNumeric(t *testing.T) {
	t.Parallel()
	e := testEngine()

	sig := e.Evaluate(Input{
		Fundamentals: types.Fundamentals{Symbol: "005930"},
		Screening:    eligible(),
		Numeric:      &types.SentimentSnapshot{Score: 10},
		Quote:        &types.Quote{Price: 100, High: 100, Low: 100},
	})
	// (50 - 10) * 0.6 = 24, capped at 30.
	if sig.SentimentScore != 24 {
		t.Errorf("sentiment component = %v, want 24", sig.SentimentScore)
	}

	sig = e.Evaluate(Input{
		Fundamentals: types.Fundamentals{Symbol: "005930"},
		Screening:    eligible(),
		Numeric:      &types.SentimentSnapshot{Score: 100},
		Quote:        &types.Quote{Price: 100, High: 100, Low: 100},
	})
	if sig.SentimentScore != -30 {
		t.Errorf("sentiment component = %v, want capped -30", sig.SentimentScore)
	}
}

func TestTechnicalDegenerateRange(t *testing.T) {
	t.Parallel()
	// High == low: only the RSI proxy contributes.
	got := technicalComponent(&types.Quote{Price: 100, ChangePct: 2, High: 100, Low: 100})
	if got != -8 {
		t.Errorf("technical = %v, want -8 (RSI proxy only)", got)
	}
	if technicalComponent(nil) != 0 {
		t.Error("nil quote must contribute 0")
	}
}

func TestSuggestedQtyFloorsAtOne(t *testing.T) {
	t.Parallel()
	e := testEngine()

	sig := e.Evaluate(Input{
		Fundamentals: types.Fundamentals{Symbol: "005930"},
		Screening:    eligible(),
		Hybrid:       &types.HybridSentiment{HybridScore: -100},
		Quote:        &types.Quote{Price: 2_000_000, ChangePct: -5, High: 2_100_000, Low: 2_000_000},
		NotionalCap:  1_000_000,
	})
	if sig.Type != types.StrongBuy && sig.Type != types.SignalBuy {
		t.Fatalf("type = %s, want a buy", sig.Type)
	}
	if sig.SuggestedQty != 1 {
		t.Errorf("suggested qty = %d, want floor of 1", sig.SuggestedQty)
	}
}

func TestSellRecommendationReferencesHolding(t *testing.T) {
	t.Parallel()
	e := testEngine()

	// Greedy sentiment and a stretched quote push an eligible name to sell.
	sig := e.Evaluate(Input{
		Fundamentals: types.Fundamentals{Symbol: "005930"},
		Screening:    eligible(),
		Hybrid:       &types.HybridSentiment{HybridScore: 100},
		Quote:        &types.Quote{Price: 110, ChangePct: 5, High: 110, Low: 100},
		HeldQty:      10,
	})
	// -30 + 25 - 20 - 15 = -40.
	if sig.Type != types.SignalSell {
		t.Fatalf("type = %s (score %v), want sell", sig.Type, sig.TotalScore)
	}
	if sig.SuggestedQty != 10 {
		t.Errorf("suggested qty = %d, want held 10", sig.SuggestedQty)
	}
}
