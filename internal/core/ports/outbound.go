package ports

import (
	"context"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// ItemStore persists items and enforces the identity and state invariants:
// one row per normalized URL, forward-only processing state, guarded
// delivery transitions.
type ItemStore interface {
	// Upsert inserts a new item in state new/unsent or, on URL conflict,
	// updates mutable metadata only. Reports whether a row was created.
	Upsert(ctx context.Context, sourceID int64, raw domain.RawItem) (created bool, err error)

	GetByURL(ctx context.Context, normalizedURL string) (*domain.Item, error)

	// ListByProcessingStates returns items currently in any of the given
	// states, oldest first.
	ListByProcessingStates(ctx context.Context, states ...domain.ProcessingState) ([]domain.Item, error)

	// ListSummarized returns summarized items whose effective time (publish
	// time, first-seen when absent) falls at or after since.
	ListSummarized(ctx context.Context, since time.Time) ([]domain.Item, error)

	// SaveEnrichment stores content and advances new->enriched.
	SaveEnrichment(ctx context.Context, itemID int64, content string) error

	// SaveSummary stores the summary and advances to summarized from new or
	// enriched, clearing any summarization-failed flag.
	SaveSummary(ctx context.Context, itemID int64, summary string) error

	MarkSummarizationFailed(ctx context.Context, itemID int64) error

	// MarkSending claims items for delivery, moving unsent->sending, and
	// returns the IDs actually claimed. Items another process already holds
	// in sending are not returned.
	MarkSending(ctx context.Context, itemIDs []int64) ([]int64, error)

	MarkSent(ctx context.Context, itemIDs []int64) error
	MarkUnsent(ctx context.Context, itemIDs []int64) error

	// ReclaimStuckSending rolls sending back to unsent for items claimed
	// before the cutoff, making them re-eligible for the next digest.
	ReclaimStuckSending(ctx context.Context, claimedBefore time.Time) (int64, error)
}

// SourceStore persists configured sources.
type SourceStore interface {
	UpsertSource(ctx context.Context, source domain.Source) (int64, error)
	ListSources(ctx context.Context) ([]domain.Source, error)
}

// ProfileStore persists user preferences.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, profile domain.UserProfile) error
	GetProfileByEmail(ctx context.Context, email string) (*domain.UserProfile, error)
}

// SourceFetcher pulls raw items for one source kind. Implementations are
// selected by source kind at ingestion time.
type SourceFetcher interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context, source domain.Source, since time.Time) ([]domain.RawItem, error)
}

// Enricher augments an item with full content (article text, transcript).
type Enricher interface {
	Kind() domain.SourceKind
	Enrich(ctx context.Context, item *domain.Item) (string, error)
}

// Summarizer maps content to a short summary. Failures are distinguishable
// as transient (domain.ErrTransientSummarization) or permanent
// (domain.ErrPermanentSummarization).
type Summarizer interface {
	Summarize(ctx context.Context, content, style string, maxSentences int) (string, error)
}

// DigestSender delivers one assembled digest.
type DigestSender interface {
	Send(ctx context.Context, digest domain.Digest) error
}

// EventPublisher emits run outcomes for downstream consumers. Publishing is
// best effort and never fails a run.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, report domain.RunReport) error
}
