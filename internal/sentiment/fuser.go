// Package sentiment resolves the market-sentiment inputs of a trading cycle.
//
// The Fuser fetches a numeric fear/greed index from a public endpoint (with
// a schema-different fallback), classifies it, and optionally combines it
// with an LLM-scored news digest into a hybrid score in [-100, +100].
// Both the numeric reading and the hybrid result are cached for the
// configured TTL (10 minutes by default), independently of each other.
//
// The news leg degrades gracefully: any failure fetching headlines or
// calling the analyser collapses the weights to numeric-only. Sentiment
// resolution never fails a cycle as long as one numeric source answers.
package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// Classify buckets a numeric fear/greed score. Intervals are right-open:
// 25 is Fear, 45 Neutral, 55 Greed, 75 ExtremeGreed. Scores are clamped
// into [0, 100] first.
func Classify(score float64) types.SentimentClass {
	score = types.Clamp(score, 0, 100)
	switch {
	case score < 25:
		return types.ExtremeFear
	case score < 45:
		return types.Fear
	case score < 55:
		return types.Neutral
	case score < 75:
		return types.Greed
	default:
		return types.ExtremeGreed
	}
}

// BuyMultiplier maps the numeric score to the position-sizing multiplier
// used by the order executor. Contrarian: extreme fear sizes up, greed
// sizes down to zero. Monotone non-increasing in the score.
func BuyMultiplier(score float64) float64 {
	score = types.Clamp(score, 0, 100)
	switch {
	case score < 25:
		return 1.5
	case score < 45:
		return 1.2
	case score < 55:
		return 1.0
	case score < 75:
		return 0.5
	default:
		return 0.0
	}
}

// Remap converts a [0, 100] fear/greed score onto the [-100, +100] axis
// the hybrid combination uses.
func Remap(score float64) float64 {
	return (score - 50) * 2
}

// HeadlineSource provides the current news headlines (the RSS collector).
type HeadlineSource interface {
	FetchHeadlines(ctx context.Context) ([]types.Headline, error)
}

// Analyzer scores a headline batch (the LLM news analyser).
type Analyzer interface {
	Analyze(ctx context.Context, headlines []types.Headline) (*types.NewsAnalysis, error)
}

// Fuser fetches, caches, and combines sentiment inputs. Safe for
// concurrent use.
type Fuser struct {
	http      *resty.Client
	cfg       config.SentimentConfig
	headlines HeadlineSource // nil disables the news leg
	analyzer  Analyzer       // nil disables the news leg
	logger    *slog.Logger

	mu        sync.Mutex
	numeric   *types.SentimentSnapshot
	numericAt time.Time
	hybrid    *types.HybridSentiment
	hybridAt  time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewFuser creates a sentiment fuser. headlines and analyzer may both be
// nil, in which case every hybrid is numeric-only.
func NewFuser(cfg config.SentimentConfig, headlines HeadlineSource, analyzer Analyzer, logger *slog.Logger) *Fuser {
	httpClient := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(time.Second)

	return &Fuser{
		http:      httpClient,
		cfg:       cfg,
		headlines: headlines,
		analyzer:  analyzer,
		logger:    logger.With("component", "sentiment"),
		now:       time.Now,
	}
}

// primaryResponse is the first endpoint's schema: score is a float nested
// under fear_and_greed, timestamp in epoch milliseconds.
type primaryResponse struct {
	FearAndGreed struct {
		Score     float64 `json:"score"`
		Timestamp int64   `json:"timestamp"`
	} `json:"fear_and_greed"`
}

// fallbackResponse is the second endpoint's schema: score is a string
// integer, timestamp in epoch seconds.
type fallbackResponse struct {
	Data []struct {
		Value     string `json:"value"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
}

// Numeric returns the cached fear/greed snapshot, refreshing it past the
// TTL. The fallback endpoint is consulted only when the primary fails.
func (f *Fuser) Numeric(ctx context.Context) (*types.SentimentSnapshot, error) {
	f.mu.Lock()
	if f.numeric != nil && f.now().Sub(f.numericAt) < f.cfg.CacheTTL {
		snap := *f.numeric
		f.mu.Unlock()
		return &snap, nil
	}
	f.mu.Unlock()

	snap, err := f.fetchPrimary(ctx)
	if err != nil {
		f.logger.Warn("primary fear/greed source failed, trying fallback", "error", err)
		snap, err = f.fetchFallback(ctx)
		if err != nil {
			return nil, fmt.Errorf("all fear/greed sources failed: %w", err)
		}
	}

	f.mu.Lock()
	f.numeric = snap
	f.numericAt = f.now()
	f.mu.Unlock()

	result := *snap
	return &result, nil
}

func (f *Fuser) fetchPrimary(ctx context.Context) (*types.SentimentSnapshot, error) {
	var result primaryResponse
	resp, err := f.http.R().
		SetContext(ctx).
		SetHeader("User-Agent", "Mozilla/5.0").
		SetResult(&result).
		Get(f.cfg.PrimaryURL)
	if err != nil {
		return nil, fmt.Errorf("primary fetch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("primary fetch: status %d", resp.StatusCode())
	}

	score := types.Clamp(math.Round(result.FearAndGreed.Score), 0, 100)
	return &types.SentimentSnapshot{
		Score:     score,
		Class:     Classify(score),
		Source:    "primary",
		FetchedAt: time.UnixMilli(result.FearAndGreed.Timestamp),
	}, nil
}

func (f *Fuser) fetchFallback(ctx context.Context) (*types.SentimentSnapshot, error) {
	var result fallbackResponse
	resp, err := f.http.R().
		SetContext(ctx).
		SetQueryParam("limit", "1").
		SetResult(&result).
		Get(f.cfg.FallbackURL)
	if err != nil {
		return nil, fmt.Errorf("fallback fetch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fallback fetch: status %d", resp.StatusCode())
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("fallback fetch: empty data")
	}

	raw, err := strconv.ParseFloat(result.Data[0].Value, 64)
	if err != nil {
		return nil, fmt.Errorf("fallback fetch: bad value %q", result.Data[0].Value)
	}
	epoch, _ := strconv.ParseInt(result.Data[0].Timestamp, 10, 64)

	score := types.Clamp(raw, 0, 100)
	return &types.SentimentSnapshot{
		Score:     score,
		Class:     Classify(score),
		Source:    "fallback",
		FetchedAt: time.Unix(epoch, 0),
	}, nil
}

// Hybrid returns the cached hybrid sentiment, recomputing it past the TTL.
// The numeric leg is mandatory; the news leg is best-effort.
func (f *Fuser) Hybrid(ctx context.Context) (*types.HybridSentiment, error) {
	f.mu.Lock()
	if f.hybrid != nil && f.now().Sub(f.hybridAt) < f.cfg.CacheTTL {
		h := *f.hybrid
		f.mu.Unlock()
		return &h, nil
	}
	f.mu.Unlock()

	snap, err := f.Numeric(ctx)
	if err != nil {
		return nil, err
	}

	hybrid := f.combine(ctx, snap)

	f.mu.Lock()
	f.hybrid = hybrid
	f.hybridAt = f.now()
	f.mu.Unlock()

	result := *hybrid
	return &result, nil
}

// combine runs the news leg and folds it into the numeric reading.
func (f *Fuser) combine(ctx context.Context, snap *types.SentimentSnapshot) *types.HybridSentiment {
	numeric := Remap(snap.Score)

	h := &types.HybridSentiment{
		NumericScore:  numeric,
		NumericWeight: 1.0,
		NewsWeight:    0,
		Snapshot:      *snap,
	}

	analysis := f.analyzeNews(ctx)
	if analysis != nil {
		h.NewsAvailable = true
		h.NewsScore = types.Clamp(analysis.OverallScore, -100, 100)
		h.NumericWeight = f.cfg.NumericWeight
		h.NewsWeight = f.cfg.NewsWeight
		for _, a := range analysis.Analyses {
			h.NewsUrgency = types.MaxUrgency(h.NewsUrgency, a.Urgency)
		}
	}

	h.HybridScore = types.Clamp(h.NumericWeight*numeric+h.NewsWeight*h.NewsScore, -100, 100)
	return h
}

// analyzeNews returns nil on any failure or when the news leg is not
// configured; the caller falls back to numeric-only weights.
func (f *Fuser) analyzeNews(ctx context.Context) *types.NewsAnalysis {
	if f.headlines == nil || f.analyzer == nil {
		return nil
	}

	headlines, err := f.headlines.FetchHeadlines(ctx)
	if err != nil {
		f.logger.Warn("headline fetch failed, numeric-only sentiment", "error", err)
		return nil
	}
	if len(headlines) == 0 {
		return nil
	}

	analysis, err := f.analyzer.Analyze(ctx, headlines)
	if err != nil {
		f.logger.Warn("news analysis failed, numeric-only sentiment", "error", err)
		return nil
	}
	return analysis
}
