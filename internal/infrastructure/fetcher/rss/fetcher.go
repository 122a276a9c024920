package rss

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// Fetcher pulls items from RSS 2.0 and Atom feeds for feed-kind sources.
type Fetcher struct {
	httpClient *http.Client
}

func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (f *Fetcher) Kind() domain.SourceKind {
	return domain.KindFeed
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func (f *Fetcher) Fetch(ctx context.Context, source domain.Source, since time.Time) ([]domain.RawItem, error) {
	body, err := f.download(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	items, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", source.URL, err)
	}
	return filterSince(items, since), nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return body, nil
}

func parseFeed(body []byte) ([]domain.RawItem, error) {
	var rss rssDocument
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return fromRSS(rss), nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(body, &atom); err != nil {
		return nil, fmt.Errorf("neither rss nor atom: %w", err)
	}
	return fromAtom(atom), nil
}

func fromRSS(doc rssDocument) []domain.RawItem {
	items := make([]domain.RawItem, 0, len(doc.Channel.Items))
	for _, entry := range doc.Channel.Items {
		items = append(items, domain.RawItem{
			URL:         strings.TrimSpace(entry.Link),
			Title:       strings.TrimSpace(entry.Title),
			Content:     strings.TrimSpace(entry.Description),
			PublishedAt: parseTime(entry.PubDate),
		})
	}
	return items
}

func fromAtom(doc atomDocument) []domain.RawItem {
	items := make([]domain.RawItem, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		content := strings.TrimSpace(entry.Content)
		if content == "" {
			content = strings.TrimSpace(entry.Summary)
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}
		items = append(items, domain.RawItem{
			URL:         alternateLink(entry.Links),
			Title:       strings.TrimSpace(entry.Title),
			Content:     content,
			PublishedAt: parseTime(published),
		})
	}
	return items
}

func alternateLink(links []atomLink) string {
	for _, link := range links {
		if link.Rel == "alternate" || link.Rel == "" {
			return strings.TrimSpace(link.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

// feedTimeLayouts covers the date formats seen across real feeds.
var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// filterSince keeps items published at or after the cutoff. Items without a
// parseable publish time are kept; dropping them would lose content over a
// formatting quirk.
func filterSince(items []domain.RawItem, since time.Time) []domain.RawItem {
	filtered := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if item.PublishedAt != nil && item.PublishedAt.Before(since) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}
