// Package screener classifies universe symbols by fundamentals.
//
// Classification is rule-ordered (value trap before undervalued before
// poor shareholder return) and gated on a PER discount versus the sector
// average. The quality score is computed independently of the
// classification so a value trap still reports how it scores.
package screener

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// FundamentalsSource resolves per-symbol fundamentals. The static
// provider in this package is the default implementation.
type FundamentalsSource interface {
	Fundamentals(symbol string) (types.Fundamentals, bool)
}

// Screener classifies symbols and scores their quality.
type Screener struct {
	cfg    config.ScreenerConfig
	src    FundamentalsSource
	logger *slog.Logger
}

func New(cfg config.ScreenerConfig, src FundamentalsSource, logger *slog.Logger) *Screener {
	return &Screener{
		cfg:    cfg,
		src:    src,
		logger: logger.With("component", "screener"),
	}
}

// Screen classifies one symbol. Unknown symbols are an error; the caller
// skips them without failing the cycle.
func (s *Screener) Screen(symbol string) (*types.ScreeningResult, error) {
	f, ok := s.src.Fundamentals(symbol)
	if !ok {
		return nil, fmt.Errorf("no fundamentals for %s", symbol)
	}
	bench := s.benchmark(f)

	result := &types.ScreeningResult{
		Symbol:       symbol,
		QualityScore: s.qualityScore(f, bench),
	}

	perLow := f.PER > 0 && bench.AvgPER > 0 && f.PER < bench.AvgPER*s.cfg.PERDiscountRatio

	// First matching rule wins.
	switch {
	case perLow && (f.ROE < s.cfg.ValueTrapROE || f.RevenueGrowthYoY < 0):
		result.Quality = types.ValueTrap
		result.Reason = fmt.Sprintf("cheap PER %.1f but ROE %.1f%% / growth %.1f%% flag a value trap",
			f.PER, f.ROE, f.RevenueGrowthYoY)

	case perLow && f.ROE > s.cfg.UndervaluedROE &&
		f.OperatingMargin > bench.AvgOperatingMargin && f.RevenueGrowthYoY > 0:
		result.Quality = types.Undervalued
		result.Eligible = true
		result.Reason = fmt.Sprintf("PER %.1f under sector avg %.1f with ROE %.1f%% and growing revenue",
			f.PER, bench.AvgPER, f.ROE)

	case perLow && f.DividendYield < s.cfg.DividendThreshold && !f.HasBuyback:
		result.Quality = types.PoorShareholderReturn
		result.Reason = fmt.Sprintf("cheap but dividend %.1f%% below %.1f%% and no buyback",
			f.DividendYield, s.cfg.DividendThreshold)

	default:
		result.Quality = types.PoorShareholderReturn
		result.Reason = "PER discount not met"
	}

	return result, nil
}

// benchmark picks the sector-average row for the symbol's market,
// falling back to the table's "default" entry.
func (s *Screener) benchmark(f types.Fundamentals) types.SectorBenchmark {
	table := s.cfg.OverseasSectors
	if types.IsDomestic(f.Symbol) {
		table = s.cfg.DomesticSectors
	}
	if b, ok := table[f.Sector]; ok {
		return b
	}
	if b, ok := table["default"]; ok {
		return b
	}
	return types.SectorBenchmark{}
}

// qualityScore sums five clamped piecewise-linear components, at most
// 100 points total, rounded to one decimal.
func (s *Screener) qualityScore(f types.Fundamentals, bench types.SectorBenchmark) float64 {
	var total float64

	// PER relative value, 30 pts: max at PER/sector <= 0.5, zero at >= 1.5.
	if f.PER > 0 && bench.AvgPER > 0 {
		ratio := f.PER / bench.AvgPER
		total += types.Clamp(30*(1.5-ratio), 0, 30)
	}

	// ROE, 25 pts: max at 15%+.
	total += types.Clamp(25*f.ROE/15, 0, 25)

	// Operating margin vs sector, 20 pts: max at 2x the sector average.
	if bench.AvgOperatingMargin > 0 {
		total += types.Clamp(20*f.OperatingMargin/(2*bench.AvgOperatingMargin), 0, 20)
	}

	// Revenue growth, 15 pts: [-10%, +20%] maps onto [0, 15].
	total += types.Clamp(15*(f.RevenueGrowthYoY+10)/30, 0, 15)

	// Dividend yield, 10 pts: max at 5%+.
	total += types.Clamp(10*f.DividendYield/5, 0, 10)

	return math.Round(total*10) / 10
}
