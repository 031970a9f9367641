// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the trader: symbols, quotes,
// fundamentals, screening and signal results, positions, orders, and the
// per-cycle outcome record. It has no dependencies on internal packages,
// so it can be imported by any layer.
package types

import (
	"regexp"
	"time"
)

// Side represents the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Exchange tags an overseas symbol with its listing venue.
type Exchange string

const (
	ExchangeNASD Exchange = "NASD"
	ExchangeNYSE Exchange = "NYSE"
	ExchangeAMEX Exchange = "AMEX"
)

// ValidExchange reports whether e is one of the supported overseas venues.
func ValidExchange(e Exchange) bool {
	switch e {
	case ExchangeNASD, ExchangeNYSE, ExchangeAMEX:
		return true
	}
	return false
}

var (
	domesticRe = regexp.MustCompile(`^\d{6}$`)
	overseasRe = regexp.MustCompile(`^[A-Z.]+$`)
)

// IsDomestic reports whether symbol is a 6-digit domestic (KRX) code.
func IsDomestic(symbol string) bool {
	return domesticRe.MatchString(symbol)
}

// IsOverseas reports whether symbol is an uppercase overseas ticker.
// The symbol kind is always derived from the shape, never stored.
func IsOverseas(symbol string) bool {
	return !domesticRe.MatchString(symbol) && overseasRe.MatchString(symbol)
}

// SignalType is the five-level trade recommendation.
type SignalType string

const (
	StrongBuy  SignalType = "strong_buy"
	SignalBuy  SignalType = "buy"
	Hold       SignalType = "hold"
	SignalSell SignalType = "sell"
	StrongSell SignalType = "strong_sell"
)

// Quality classifies a screened symbol.
type Quality string

const (
	Undervalued           Quality = "undervalued"
	ValueTrap             Quality = "value_trap"
	PoorShareholderReturn Quality = "poor_shareholder_return"
)

// SentimentClass buckets the numeric fear/greed score.
type SentimentClass string

const (
	ExtremeFear  SentimentClass = "extreme_fear"
	Fear         SentimentClass = "fear"
	Neutral      SentimentClass = "neutral"
	Greed        SentimentClass = "greed"
	ExtremeGreed SentimentClass = "extreme_greed"
)

// Urgency grades a news headline's market impact.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// urgencyRank orders urgencies so the fuser can pick the highest.
var urgencyRank = map[Urgency]int{
	UrgencyLow:      1,
	UrgencyMedium:   2,
	UrgencyHigh:     3,
	UrgencyCritical: 4,
}

// MaxUrgency returns the more severe of a and b. Unknown values rank lowest.
func MaxUrgency(a, b Urgency) Urgency {
	if urgencyRank[b] > urgencyRank[a] {
		return b
	}
	return a
}

// Quote is a most-recent-price snapshot for a symbol. Quotes are never
// cached: the executor re-fetches at decision time.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`      // current price, always > 0
	ChangePct float64 `json:"change_pct"` // percent change vs prior close
	High      float64 `json:"high"`       // intraday high
	Low       float64 `json:"low"`        // intraday low
	PER       float64 `json:"per"`        // may be 0 for overseas symbols
	PBR       float64 `json:"pbr"`        // may be 0 for overseas symbols
}

// Fundamentals holds per-symbol semi-static financial metrics used by the
// screener. Ratios are percentages (ROE 12.5 means 12.5%). Exchange is
// set for overseas symbols only.
type Fundamentals struct {
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	Sector           string   `json:"sector"`
	Exchange         Exchange `json:"exchange,omitempty"`
	PER              float64  `json:"per"`
	ROE              float64  `json:"roe"`
	DividendYield    float64  `json:"dividend_yield"`
	OperatingMargin  float64  `json:"operating_margin"`
	RevenueGrowthYoY float64  `json:"revenue_growth_yoy"`
	HasBuyback       bool     `json:"has_buyback"`
}

// SectorBenchmark is the sector-average table the screener compares against.
type SectorBenchmark struct {
	AvgPER             float64 `json:"avg_per" mapstructure:"avg_per"`
	AvgOperatingMargin float64 `json:"avg_operating_margin" mapstructure:"avg_operating_margin"`
}

// ScreeningResult is the screener's verdict for one symbol.
// Eligible is true iff Quality is Undervalued.
type ScreeningResult struct {
	Symbol       string  `json:"symbol"`
	Quality      Quality `json:"quality"`
	QualityScore float64 `json:"quality_score"` // 0..100, one decimal
	Eligible     bool    `json:"eligible"`
	Reason       string  `json:"reason"`
}

// SentimentSnapshot is a fetched fear/greed reading. Classification is a
// pure function of the score.
type SentimentSnapshot struct {
	Score     float64        `json:"score"` // 0..100, clamped
	Class     SentimentClass `json:"class"`
	Source    string         `json:"source"` // which endpoint produced it
	FetchedAt time.Time      `json:"fetched_at"`
}

// HybridSentiment combines the numeric fear/greed reading with an optional
// LLM-scored news digest. HybridScore is clamped into [-100, +100].
type HybridSentiment struct {
	HybridScore   float64           `json:"hybrid_score"`
	NumericScore  float64           `json:"numeric_score"` // remapped to [-100, +100]
	NewsScore     float64           `json:"news_score"`
	NumericWeight float64           `json:"numeric_weight"`
	NewsWeight    float64           `json:"news_weight"`
	NewsAvailable bool              `json:"news_available"`
	NewsUrgency   Urgency           `json:"news_urgency,omitempty"` // highest across headlines
	Snapshot      SentimentSnapshot `json:"snapshot"`
}

// Headline is one news item from the RSS collector.
type Headline struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Category    string    `json:"category"`
}

// HeadlineAnalysis is the LLM's per-headline verdict.
type HeadlineAnalysis struct {
	Title           string   `json:"title"`
	ImpactScore     float64  `json:"impact_score"`
	Category        string   `json:"category"`
	AffectedSectors []string `json:"affected_sectors"`
	Urgency         Urgency  `json:"urgency"`
	Reasoning       string   `json:"reasoning"`
}

// NewsAnalysis is the LLM's digest of the current headline batch.
// OverallScore is in [-100, +100].
type NewsAnalysis struct {
	OverallScore        float64            `json:"overall_score"`
	MarketImpactSummary string             `json:"market_impact_summary"`
	Analyses            []HeadlineAnalysis `json:"analyses"`
}

// TradeSignal is the composite per-symbol recommendation.
type TradeSignal struct {
	Symbol         string     `json:"symbol"`
	Name           string     `json:"name"`
	Type           SignalType `json:"signal_type"`
	TotalScore     float64    `json:"total_score"` // clamped to [-100, +100]
	SentimentScore float64    `json:"sentiment_score"`
	QualityScore   float64    `json:"quality_score"`
	TechnicalScore float64    `json:"technical_score"`
	Reason         string     `json:"reason"`
	Action         string     `json:"recommended_action"`
	SuggestedQty   int64      `json:"suggested_qty,omitempty"`
}

// Position is one holding from the balance inquiry.
type Position struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Quantity     int64   `json:"quantity"` // always > 0
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	PnLAmount    float64 `json:"pnl_amount"`
	PnLPct       float64 `json:"pnl_pct"`
	// Exchange is the venue the position sits on; empty for domestic.
	Exchange Exchange `json:"exchange,omitempty"`
}

// BalanceSummary aggregates the account.
type BalanceSummary struct {
	Cash      float64 `json:"cash"`
	TotalEval float64 `json:"total_eval"` // positions + cash, marked to market
}

// Balance is the account snapshot fetched once per cycle.
type Balance struct {
	Positions []Position     `json:"positions"`
	Summary   BalanceSummary `json:"summary"`
}

// Order is a request to the broker. Price 0 means market order; overseas
// orders must always carry a limit price.
type Order struct {
	Symbol   string   `json:"symbol"`
	Side     Side     `json:"side"`
	Quantity int64    `json:"quantity"` // >= 1
	Price    float64  `json:"price,omitempty"`
	Exchange Exchange `json:"exchange,omitempty"` // overseas only
}

// OrderReceipt is the broker's acknowledgement.
type OrderReceipt struct {
	OrderNo   string `json:"order_no"`
	Timestamp string `json:"timestamp"` // broker-formatted HHMMSS
}

// ExecutionRecord is one executed (or dry-run simulated) order inside a cycle.
type ExecutionRecord struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Notional float64 `json:"notional"`
	DryRun   bool    `json:"dry_run"`
	OrderNo  string  `json:"order_no,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// CycleStatus marks how a cycle ended.
type CycleStatus string

const (
	CycleOK      CycleStatus = "ok"
	CycleSkipped CycleStatus = "skipped"
	CycleAborted CycleStatus = "aborted"
	CycleError   CycleStatus = "error"
)

// CycleResult is the structured outcome of one trading cycle. The scheduler
// keeps a bounded ring of these.
type CycleResult struct {
	Timestamp     string            `json:"timestamp"` // RFC 3339
	Status        CycleStatus       `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	Sentiment     *HybridSentiment  `json:"sentiment,omitempty"`
	Scanned       int               `json:"scanned"`
	BuySignals    []TradeSignal     `json:"buy_signals"`
	SellSignals   []TradeSignal     `json:"sell_signals"`
	ExecutedBuys  []ExecutionRecord `json:"executed_buys"`
	ExecutedSells []ExecutionRecord `json:"executed_sells"`
	Errors        []string          `json:"errors,omitempty"`
	DryRun        bool              `json:"dry_run"`
}

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
