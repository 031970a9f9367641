// news.go implements the LLM news analyser against an OpenAI-compatible
// chat-completions endpoint. The model is instructed to return a strict
// JSON object (overall_score, market_impact_summary, analyses[]); the
// response content is parsed tolerantly (code fences stripped) and scores
// are clamped.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

const analystSystemPrompt = `You are a market news analyst for an automated equity trading system.
Score the combined market impact of the given headlines on a scale from -100
(extremely bearish) to +100 (extremely bullish). Respond with a single JSON
object and nothing else:
{"overall_score": <number>, "market_impact_summary": "<one sentence>",
 "analyses": [{"title": "<headline>", "impact_score": <number>,
 "category": "<string>", "affected_sectors": ["<string>"],
 "urgency": "low|medium|high|critical", "reasoning": "<one sentence>"}]}`

// NewsAnalyzer calls a chat-completions endpoint to score headlines.
type NewsAnalyzer struct {
	http   *resty.Client
	model  string
	logger *slog.Logger
}

// NewNewsAnalyzer creates an analyser, or nil if no API key is configured
// (the fuser treats a nil analyser as "news leg disabled").
func NewNewsAnalyzer(cfg config.NewsConfig, logger *slog.Logger) *NewsAnalyzer {
	if cfg.APIKey == "" {
		return nil
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30 * time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &NewsAnalyzer{
		http:   httpClient,
		model:  cfg.Model,
		logger: logger.With("component", "news-analyzer"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze scores the headline batch. The returned analysis has
// OverallScore and every ImpactScore clamped into [-100, +100] and
// unknown urgencies normalised to low.
func (a *NewsAnalyzer) Analyze(ctx context.Context, headlines []types.Headline) (*types.NewsAnalysis, error) {
	if len(headlines) == 0 {
		return nil, fmt.Errorf("no headlines to analyze")
	}

	var b strings.Builder
	for i, h := range headlines {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, h.Source, h.Title)
	}

	req := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: analystSystemPrompt},
			{Role: "user", Content: b.String()},
		},
		Temperature: 0.2,
	}

	var result chatResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("llm request: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("llm request: no choices returned")
	}

	analysis, err := parseAnalysis(result.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	a.logger.Info("news analyzed",
		"headlines", len(headlines),
		"overall_score", analysis.OverallScore,
	)
	return analysis, nil
}

// parseAnalysis decodes the model's JSON, tolerating markdown code fences.
func parseAnalysis(content string) (*types.NewsAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var analysis types.NewsAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("parse llm output: %w", err)
	}

	analysis.OverallScore = types.Clamp(analysis.OverallScore, -100, 100)
	for i := range analysis.Analyses {
		analysis.Analyses[i].ImpactScore = types.Clamp(analysis.Analyses[i].ImpactScore, -100, 100)
		switch analysis.Analyses[i].Urgency {
		case types.UrgencyLow, types.UrgencyMedium, types.UrgencyHigh, types.UrgencyCritical:
		default:
			analysis.Analyses[i].Urgency = types.UrgencyLow
		}
	}
	return &analysis, nil
}
