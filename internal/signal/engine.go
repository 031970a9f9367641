// Package signal computes the per-symbol composite trade signal.
//
// The composite is sentiment + quality + technical, clamped into
// [-100, +100]. Sentiment is contrarian (fear scores positive), quality
// is a flat bonus gated on screening eligibility, and the technical read
// is derived from the live quote alone: an RSI proxy against the prior
// day's move and a Bollinger %B proxy against the intraday range.
package signal

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

const (
	qualityBonus = 25.0

	strongBuyAbove  = 70.0
	buyAbove        = 35.0
	sellBelow       = -20.0
	strongSellBelow = -60.0
)

// Input carries everything one evaluation needs. Hybrid may be nil when
// only a numeric sentiment reading is available; Numeric must then be set.
type Input struct {
	Fundamentals types.Fundamentals
	Screening    *types.ScreeningResult
	Hybrid       *types.HybridSentiment
	Numeric      *types.SentimentSnapshot
	Quote        *types.Quote
	NotionalCap  float64
	HeldQty      int64
}

// Engine is stateless; evaluations are pure given their input.
type Engine struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With("component", "signal")}
}

// Evaluate produces the composite signal for one symbol. An ineligible
// screening short-circuits to Hold with a zero score.
func (e *Engine) Evaluate(in Input) *types.TradeSignal {
	sig := &types.TradeSignal{
		Symbol: in.Fundamentals.Symbol,
		Name:   in.Fundamentals.Name,
	}

	if in.Screening == nil || !in.Screening.Eligible {
		sig.Type = types.Hold
		sig.Reason = "not eligible"
		if in.Screening != nil {
			sig.Reason = fmt.Sprintf("not eligible: %s", in.Screening.Reason)
		}
		return sig
	}

	sentimentC := e.sentimentComponent(in.Hybrid, in.Numeric)
	technicalC := technicalComponent(in.Quote)

	total := types.Clamp(sentimentC+qualityBonus+technicalC, -100, 100)

	sig.SentimentScore = sentimentC
	sig.QualityScore = qualityBonus
	sig.TechnicalScore = technicalC
	sig.TotalScore = total
	sig.Type = mapScore(total)
	sig.Reason = fmt.Sprintf("sentiment %+.1f, quality %+.1f, technical %+.1f",
		sentimentC, qualityBonus, technicalC)

	e.recommend(sig, in)
	return sig
}

// mapScore converts a composite score to the five-level signal.
// Monotone in the score.
func mapScore(s float64) types.SignalType {
	switch {
	case s > strongBuyAbove:
		return types.StrongBuy
	case s > buyAbove:
		return types.SignalBuy
	case s < strongSellBelow:
		return types.StrongSell
	case s < sellBelow:
		return types.SignalSell
	default:
		return types.Hold
	}
}

// sentimentComponent is contrarian: a bearish hybrid score contributes
// positively. Without a hybrid it falls back to the raw numeric reading.
func (e *Engine) sentimentComponent(hybrid *types.HybridSentiment, numeric *types.SentimentSnapshot) float64 {
	if hybrid != nil {
		return -hybrid.HybridScore / 100 * 30
	}
	if numeric != nil {
		return types.Clamp((50-numeric.Score)*0.6, -30, 30)
	}
	return 0
}

// technicalComponent reads the quote two ways, each clamped, together
// bounded to [-35, 35].
func technicalComponent(q *types.Quote) float64 {
	if q == nil {
		return 0
	}

	// RSI proxy: fade the prior day's move.
	rsi := types.Clamp(-q.ChangePct*4, -20, 20)

	// Bollinger %B proxy against the intraday range.
	var boll float64
	if q.High > q.Low && q.Low > 0 {
		pctB := (q.Price - q.Low) / (q.High - q.Low)
		boll = types.Clamp((0.5-pctB)*30, -15, 15)
	}

	return rsi + boll
}

// recommend fills the action text and, for buys, a suggested quantity
// from the per-symbol notional cap.
func (e *Engine) recommend(sig *types.TradeSignal, in Input) {
	switch sig.Type {
	case types.StrongBuy, types.SignalBuy:
		if in.Quote != nil && in.Quote.Price > 0 {
			qty := int64(math.Floor(in.NotionalCap / in.Quote.Price))
			if qty < 1 {
				qty = 1
			}
			sig.SuggestedQty = qty
			sig.Action = fmt.Sprintf("buy %d shares near %.2f", qty, in.Quote.Price)
		}
	case types.SignalSell, types.StrongSell:
		if in.HeldQty > 0 {
			sig.SuggestedQty = in.HeldQty
			sig.Action = fmt.Sprintf("sell held %d shares", in.HeldQty)
		}
	}
}
