// Package news collects market headlines from configured RSS feeds.
//
// The collector is the concrete HeadlineSource the sentiment fuser
// consumes: headlines are deduplicated by URL, sorted newest-first, and
// capped. A failing feed is logged and skipped; collection fails only
// when every feed fails.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mmcdole/gofeed"

	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// Collector fetches and merges RSS feeds.
type Collector struct {
	parser       *gofeed.Parser
	feeds        []string
	maxHeadlines int
	logger       *slog.Logger
}

// NewCollector creates an RSS collector, or nil when no feeds are
// configured (disables the news leg).
func NewCollector(feeds []string, maxHeadlines int, logger *slog.Logger) *Collector {
	if len(feeds) == 0 {
		return nil
	}
	if maxHeadlines <= 0 {
		maxHeadlines = 20
	}
	return &Collector{
		parser:       gofeed.NewParser(),
		feeds:        feeds,
		maxHeadlines: maxHeadlines,
		logger:       logger.With("component", "rss"),
	}
}

// FetchHeadlines pulls every configured feed. Partial-source failure does
// not abort the collection.
func (c *Collector) FetchHeadlines(ctx context.Context) ([]types.Headline, error) {
	seen := make(map[string]bool)
	var headlines []types.Headline
	var failed int

	for _, url := range c.feeds {
		feed, err := c.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			failed++
			c.logger.Warn("feed fetch failed", "url", url, "error", err)
			continue
		}

		for _, item := range feed.Items {
			if item.Link == "" || seen[item.Link] {
				continue
			}
			seen[item.Link] = true

			h := types.Headline{
				Title:  item.Title,
				Source: feed.Title,
				URL:    item.Link,
			}
			if item.PublishedParsed != nil {
				h.PublishedAt = *item.PublishedParsed
			}
			if len(item.Categories) > 0 {
				h.Category = item.Categories[0]
			}
			headlines = append(headlines, h)
		}
	}

	if failed == len(c.feeds) {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}

	sort.Slice(headlines, func(i, j int) bool {
		return headlines[i].PublishedAt.After(headlines[j].PublishedAt)
	})
	if len(headlines) > c.maxHeadlines {
		headlines = headlines[:c.maxHeadlines]
	}
	return headlines, nil
}
