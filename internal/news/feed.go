package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/time/rate"

	"moex-bonds/internal/model"
)

// DefaultFeedURL is the Google News RSS search endpoint.
const DefaultFeedURL = "https://news.google.com/rss/search"

// Fetcher queries the news feed for an issuer, throttled across workers.
type Fetcher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher creates a Fetcher allowing perSecond requests; zero or less means unthrottled.
func NewFetcher(baseURL string, perSecond float64) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultFeedURL
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Fetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// searchURL asks for the last year of Russian-language news.
func (f *Fetcher) searchURL(company string) string {
	return f.baseURL + "?q=" + url.QueryEscape(company) + "+when:1y&hl=ru&gl=RU&ceid=RU:ru"
}

// Fetch returns the news items found for company.
func (f *Fetcher) Fetch(ctx context.Context, company string) ([]model.NewsItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.searchURL(company), nil)
	if err != nil {
		return nil, fmt.Errorf("news: create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news: %s: %w", company, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news: %s: status %d", company, resp.StatusCode)
	}

	feed, err := (&rss.Parser{}).Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("news: parse feed for %s: %w", company, err)
	}
	items := make([]model.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		n := model.NewsItem{Source: "Google News", Title: strings.TrimSpace(it.Title), URL: it.Link}
		if it.Source != nil && it.Source.Title != "" {
			n.Source = it.Source.Title
		}
		if it.PubDateParsed != nil {
			n.Published = it.PubDateParsed.UTC()
		}
		items = append(items, n)
	}
	return items, nil
}
