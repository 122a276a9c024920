package transcript

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

const timedTextURL = "https://video.google.com/timedtext"

// Enricher fetches caption transcripts for video items via the public
// timedtext endpoint. Videos without captions fail enrichment and fall back
// to their feed description at summarization time on a later run.
type Enricher struct {
	httpClient *http.Client
	language   string
}

func New(timeout time.Duration, language string) *Enricher {
	if language == "" {
		language = "en"
	}
	return &Enricher{
		httpClient: &http.Client{Timeout: timeout},
		language:   language,
	}
}

func (e *Enricher) Kind() domain.SourceKind {
	return domain.KindVideoChannel
}

type transcriptDocument struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []string `xml:"text"`
}

func (e *Enricher) Enrich(ctx context.Context, item *domain.Item) (string, error) {
	videoID, err := videoIDFromURL(item.URL)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("lang", e.language)
	query.Set("v", videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, timedTextURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build transcript request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch transcript: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("no transcript available for video %s", videoID)
	}

	var doc transcriptDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse transcript: %w", err)
	}

	var lines []string
	for _, text := range doc.Texts {
		line := strings.TrimSpace(html.UnescapeString(text))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("empty transcript for video %s", videoID)
	}
	return strings.Join(lines, " "), nil
}

func videoIDFromURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse video url: %w", err)
	}
	if id := parsed.Query().Get("v"); id != "" {
		return id, nil
	}
	// youtu.be short links carry the id as the path.
	if strings.Contains(parsed.Host, "youtu.be") {
		if id := strings.Trim(parsed.Path, "/"); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("no video id in url %s", raw)
}
