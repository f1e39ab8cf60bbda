package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/econolens/econolens/backend/internal/models"
)

// DefaultNewsBaseURL is the Google News RSS endpoint.
const DefaultNewsBaseURL = "https://news.google.com"

// DefaultNewsLimit caps how many articles a fetch returns.
const DefaultNewsLimit = 10

// NewsAdapter fetches recent articles for an entity from an RSS search
// feed and scores each one for sentiment.
type NewsAdapter struct {
	fetcher *Fetcher
	scorer  Scorer
	baseURL string
	limit   int
	log     *slog.Logger
}

// NewNewsAdapter wires the adapter; empty baseURL selects Google News,
// limit <= 0 selects DefaultNewsLimit.
func NewNewsAdapter(fetcher *Fetcher, scorer Scorer, baseURL string, limit int, log *slog.Logger) *NewsAdapter {
	if baseURL == "" {
		baseURL = DefaultNewsBaseURL
	}
	if limit <= 0 {
		limit = DefaultNewsLimit
	}
	return &NewsAdapter{fetcher: fetcher, scorer: scorer, baseURL: baseURL, limit: limit, log: log}
}

// Fetch returns scored news items, newest first as the feed orders them.
// An empty feed is NotFound. A sentiment failure on one article scores
// that article neutral (0) and keeps the batch; the policy is neutral, not
// drop, so callers always see the full article list.
func (n *NewsAdapter) Fetch(ctx context.Context, query string) ([]models.NewsItem, error) {
	u := fmt.Sprintf("%s/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en", n.baseURL, url.QueryEscape(query))

	body, err := n.fetcher.Get(ctx, u)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, FetchFailed("parse news feed", err)
	}
	if len(feed.Items) == 0 {
		return nil, NotFound(fmt.Sprintf("no articles for %q", query))
	}

	items := make([]models.NewsItem, 0, n.limit)
	for _, raw := range feed.Items {
		if len(items) == n.limit {
			break
		}
		items = append(items, n.normalize(raw))
	}
	return items, nil
}

func (n *NewsAdapter) normalize(raw *gofeed.Item) models.NewsItem {
	title, source := splitFeedTitle(raw.Title)

	item := models.NewsItem{
		ID:         raw.GUID,
		Title:      title,
		Link:       raw.Link,
		Source:     source,
		SourceLink: sourceLink(raw.Link),
		Published:  publishedAt(raw),
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	text := strings.TrimSpace(title + " " + raw.Description)
	score, err := n.scorer.Score(text)
	if err != nil {
		n.log.Warn("sentiment scoring failed, using neutral",
			slog.String("article", item.ID), slog.Any("err", err))
		score = 0
	}
	item.SentimentScore = score

	return item
}

// splitFeedTitle separates "Headline - Publisher" into its parts. Feeds
// without the suffix keep the full title and an empty source.
func splitFeedTitle(full string) (title, source string) {
	if idx := strings.LastIndex(full, " - "); idx > 0 {
		return strings.TrimSpace(full[:idx]), strings.TrimSpace(full[idx+3:])
	}
	return strings.TrimSpace(full), ""
}

func sourceLink(articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func publishedAt(raw *gofeed.Item) string {
	if raw.PublishedParsed != nil {
		return raw.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return strings.TrimSpace(raw.Published)
}
