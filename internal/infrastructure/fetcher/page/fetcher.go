package page

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// Fetcher scrapes an HTML news index for page-kind sources. The CSS
// selectors come from the source config:
//
//	item_selector  - one node per article (required)
//	title_selector - title inside the item node (defaults to "a")
//	link_selector  - anchor inside the item node (defaults to "a")
//	time_selector  - optional <time datetime="..."> inside the item node
type Fetcher struct {
	httpClient *http.Client
}

func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (f *Fetcher) Kind() domain.SourceKind {
	return domain.KindPage
}

func (f *Fetcher) Fetch(ctx context.Context, source domain.Source, since time.Time) ([]domain.RawItem, error) {
	itemSelector := source.Config["item_selector"]
	if itemSelector == "" {
		return nil, fmt.Errorf("page source %q missing item_selector", source.Name)
	}
	titleSelector := selectorOrDefault(source.Config, "title_selector", "a")
	linkSelector := selectorOrDefault(source.Config, "link_selector", "a")
	timeSelector := source.Config["time_selector"]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	base, err := url.Parse(source.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	var items []domain.RawItem
	doc.Find(itemSelector).Each(func(_ int, node *goquery.Selection) {
		href, ok := node.Find(linkSelector).First().Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(node.Find(titleSelector).First().Text())

		var published *time.Time
		if timeSelector != "" {
			if stamp, ok := node.Find(timeSelector).First().Attr("datetime"); ok {
				if t, err := time.Parse(time.RFC3339, strings.TrimSpace(stamp)); err == nil {
					utc := t.UTC()
					published = &utc
				}
			}
		}
		if published != nil && published.Before(since) {
			return
		}

		items = append(items, domain.RawItem{
			URL:         resolveHref(base, href),
			Title:       title,
			PublishedAt: published,
		})
	})
	return items, nil
}

func selectorOrDefault(config map[string]string, key, fallback string) string {
	if v := config[key]; v != "" {
		return v
	}
	return fallback
}

func resolveHref(base *url.URL, href string) string {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(parsed).String()
}
