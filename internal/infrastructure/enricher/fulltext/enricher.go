package fulltext

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// Enricher fetches an item's page and extracts the readable article text.
// The same extractor serves any source kind that links to HTML articles;
// the kind is fixed at construction.
type Enricher struct {
	kind       domain.SourceKind
	httpClient *http.Client
}

func New(kind domain.SourceKind, timeout time.Duration) *Enricher {
	return &Enricher{
		kind:       kind,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *Enricher) Kind() domain.SourceKind {
	return e.kind
}

func (e *Enricher) Enrich(ctx context.Context, item *domain.Item) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build article request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch article: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}
	text := ExtractText(doc)
	if text == "" {
		return "", fmt.Errorf("no readable content at %s", item.URL)
	}
	return text, nil
}

// ExtractText pulls the main article text out of a parsed page: boilerplate
// containers are dropped, then paragraphs are taken from the most specific
// content root present.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, noscript, form").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var paragraphs []string
	root.Find("p, h1, h2, h3, li").Each(func(_ int, node *goquery.Selection) {
		text := strings.TrimSpace(node.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return strings.TrimSpace(root.Text())
	}
	return strings.Join(paragraphs, "\n\n")
}
