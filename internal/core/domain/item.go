package domain

import "time"

type SourceKind string

const (
	KindFeed         SourceKind = "feed"
	KindVideoChannel SourceKind = "video-channel"
	KindPage         SourceKind = "page"
)

// Source is a configured origin items are fetched from. Sources are created
// at configuration time and never deleted while items reference them.
type Source struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Kind   SourceKind        `json:"kind"`
	URL    string            `json:"url"`
	Config map[string]string `json:"config,omitempty"`
}

type ProcessingState string

const (
	ProcessingNew        ProcessingState = "new"
	ProcessingEnriched   ProcessingState = "enriched"
	ProcessingSummarized ProcessingState = "summarized"
)

// processingTransitions is the full set of legal forward moves. Enrichment
// may be skipped for source kinds without one, so new->summarized is legal.
var processingTransitions = map[ProcessingState][]ProcessingState{
	ProcessingNew:      {ProcessingEnriched, ProcessingSummarized},
	ProcessingEnriched: {ProcessingSummarized},
}

// CanAdvance reports whether moving from one processing state to another is
// allowed by the transition table. State never regresses.
func (s ProcessingState) CanAdvance(to ProcessingState) bool {
	for _, next := range processingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type DeliveryState string

const (
	DeliveryUnsent  DeliveryState = "unsent"
	DeliverySending DeliveryState = "sending"
	DeliverySent    DeliveryState = "sent"
)

var deliveryTransitions = map[DeliveryState][]DeliveryState{
	DeliveryUnsent: {DeliverySending},
	// sending->unsent is the rollback path after an explicit send failure
	// or a recovery-timeout reclaim.
	DeliverySending: {DeliverySent, DeliveryUnsent},
}

func (s DeliveryState) CanAdvance(to DeliveryState) bool {
	for _, next := range deliveryTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is a single ingested content unit keyed globally by normalized URL.
type Item struct {
	ID       int64  `json:"id"`
	SourceID int64  `json:"source_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`

	// Content is nil until enrichment populates it; Summary is nil until
	// summarization succeeds.
	Content *string `json:"content,omitempty"`
	Summary *string `json:"summary,omitempty"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScrapedAt   time.Time  `json:"scraped_at"`

	ProcessingState     ProcessingState `json:"processing_state"`
	DeliveryState       DeliveryState   `json:"delivery_state"`
	SummarizationFailed bool            `json:"summarization_failed,omitempty"`
}

// HasContent reports whether enrichment already produced a non-empty body.
func (i *Item) HasContent() bool {
	return i.Content != nil && *i.Content != ""
}

func (i *Item) HasSummary() bool {
	return i.Summary != nil && *i.Summary != ""
}

// EffectiveTime is the timestamp used for windowing and recency: the publish
// time when the source provided one, first-seen otherwise.
func (i *Item) EffectiveTime() time.Time {
	if i.PublishedAt != nil && !i.PublishedAt.IsZero() {
		return *i.PublishedAt
	}
	return i.ScrapedAt
}

// RawItem is what a source fetcher hands to the ingestion coordinator.
type RawItem struct {
	URL         string
	Title       string
	Content     string
	PublishedAt *time.Time
}
