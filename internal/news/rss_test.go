package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func feedXML(title string, items ...string) string {
	body := ""
	for _, item := range items {
		body += item
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>%s</title>%s</channel></rss>`, title, body)
}

func item(title, link, pubDate string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate></item>`, title, link, pubDate)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCollectorRequiresFeeds(t *testing.T) {
	t.Parallel()
	if c := NewCollector(nil, 10, testLogger()); c != nil {
		t.Error("collector created without feeds")
	}
}

func TestFetchMergesAndSortsNewestFirst(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			fmt.Fprint(w, feedXML("Feed A",
				item("older", "https://example.com/1", "Mon, 13 Jan 2025 09:00:00 GMT"),
				item("newest", "https://example.com/2", "Wed, 15 Jan 2025 09:00:00 GMT"),
			))
		case "/b":
			fmt.Fprint(w, feedXML("Feed B",
				item("middle", "https://example.com/3", "Tue, 14 Jan 2025 09:00:00 GMT"),
				item("dup of newest", "https://example.com/2", "Wed, 15 Jan 2025 09:00:00 GMT"),
			))
		}
	}))
	defer srv.Close()

	c := NewCollector([]string{srv.URL + "/a", srv.URL + "/b"}, 20, testLogger())
	headlines, err := c.FetchHeadlines(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(headlines) != 3 {
		t.Fatalf("got %d headlines, want 3 (URL dedup)", len(headlines))
	}
	if headlines[0].Title != "newest" || headlines[2].Title != "older" {
		t.Errorf("order = %q, %q, %q", headlines[0].Title, headlines[1].Title, headlines[2].Title)
	}
	if headlines[0].Source != "Feed A" {
		t.Errorf("source = %q", headlines[0].Source)
	}
}

func TestFetchCapsHeadlineCount(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := make([]string, 5)
		for i := range items {
			items[i] = item(fmt.Sprintf("h%d", i), fmt.Sprintf("https://example.com/%d", i),
				"Wed, 15 Jan 2025 09:00:00 GMT")
		}
		fmt.Fprint(w, feedXML("Feed", items...))
	}))
	defer srv.Close()

	c := NewCollector([]string{srv.URL}, 2, testLogger())
	headlines, err := c.FetchHeadlines(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(headlines) != 2 {
		t.Errorf("got %d headlines, want 2", len(headlines))
	}
}

func TestPartialFeedFailureTolerated(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, feedXML("Feed",
			item("only", "https://example.com/1", "Wed, 15 Jan 2025 09:00:00 GMT")))
	}))
	defer srv.Close()

	c := NewCollector([]string{srv.URL + "/bad", srv.URL + "/ok"}, 20, testLogger())
	headlines, err := c.FetchHeadlines(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(headlines) != 1 {
		t.Errorf("got %d headlines, want 1", len(headlines))
	}
}

func TestAllFeedsFailingIsAnError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCollector([]string{srv.URL + "/x", srv.URL + "/y"}, 20, testLogger())
	if _, err := c.FetchHeadlines(context.Background()); err == nil {
		t.Error("expected error when every feed fails")
	}
}
