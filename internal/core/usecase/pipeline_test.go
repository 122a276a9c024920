package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
	"github.com/gek007/ai-news-aggregator/internal/core/ports"
)

type sourceStoreFake struct {
	sources []domain.Source
	listErr error
}

func (f *sourceStoreFake) UpsertSource(_ context.Context, source domain.Source) (int64, error) {
	return source.ID, nil
}

func (f *sourceStoreFake) ListSources(context.Context) ([]domain.Source, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sources, nil
}

type profileStoreFake struct {
	saved []domain.UserProfile
}

func (f *profileStoreFake) UpsertProfile(_ context.Context, profile domain.UserProfile) error {
	f.saved = append(f.saved, profile)
	return nil
}

func (f *profileStoreFake) GetProfileByEmail(context.Context, string) (*domain.UserProfile, error) {
	if len(f.saved) == 0 {
		return nil, domain.ErrProfileNotFound
	}
	p := f.saved[len(f.saved)-1]
	return &p, nil
}

type eventsFake struct {
	reports []domain.RunReport
	err     error
}

func (f *eventsFake) PublishRunCompleted(_ context.Context, report domain.RunReport) error {
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, report)
	return nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	store    *memItemStore
	sender   *senderFake
	events   *eventsFake
	fetcher  *fetcherFake
	now      time.Time
}

func (f *pipelineFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	now := f.now

	store := newMemItemStore()
	store.now = func() time.Time { return f.now }

	publishedA := now.Add(-2 * time.Hour)
	publishedB := now.Add(-20 * time.Hour)
	fetcher := &fetcherFake{kind: domain.KindFeed, items: map[string][]domain.RawItem{
		"systems-blog": {
			{URL: "https://example.com/x", Title: "Why Raft works in distributed systems", Content: "long raft writeup", PublishedAt: &publishedA},
		},
		"general-blog": {
			{URL: "https://example.com/y", Title: "Weekend reading list", Content: "assorted links", PublishedAt: &publishedB},
		},
	}}

	summarizer := &summarizerFake{summary: "short summary of the story"}
	sender := &senderFake{}
	events := &eventsFake{}
	logger := testLogger()

	profile := domain.UserProfile{
		Email:         "reader@example.com",
		Topics:        []domain.Topic{{Phrase: "distributed systems", Weight: 2.0}},
		SummaryStyle:  "neutral",
		SummaryLength: 3,
	}

	sources := &sourceStoreFake{sources: []domain.Source{
		{ID: 1, Name: "systems-blog", Kind: domain.KindFeed, URL: "https://example.com/feed-a"},
		{ID: 2, Name: "general-blog", Kind: domain.KindFeed, URL: "https://example.com/feed-b"},
	}}

	enricher := &enricherFake{kind: domain.KindFeed, content: "fallback full text"}
	pipeline := NewPipeline(PipelineDeps{
		Sources:  sources,
		Items:    store,
		Profiles: &profileStoreFake{},
		Events:   events,

		Ingestor:   NewIngestCoordinator(store, []ports.SourceFetcher{fetcher}, time.Second, logger),
		Enrichment: NewEnrichmentStage(store, []ports.Enricher{enricher}, 2, time.Second, logger),
		Summarizer: NewSummarizationStage(
			store,
			summarizer,
			[]domain.SourceKind{domain.KindFeed},
			fastPolicy(2),
			2,
			time.Second,
			profile.SummaryStyle,
			profile.SummaryLength,
			logger,
		),
		Assembler: NewDigestAssembler(store, sender, logger),

		Profile:          profile,
		Ranking:          DefaultRankingConfig(),
		RecoveryInterval: time.Hour,
		Logger:           logger,
	})
	pipeline.now = func() time.Time { return f.now }

	f.pipeline = pipeline
	f.store = store
	f.sender = sender
	f.events = events
	f.fetcher = fetcher
	return f
}

func TestPipelineRunDeliversTopStoryOnce(t *testing.T) {
	f := newPipelineFixture(t)

	report, err := f.pipeline.Run(context.Background(), 24*time.Hour, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Phase != domain.PhaseDone {
		t.Fatalf("expected done phase, got %s", report.Phase)
	}
	if report.Ingested.Created != 2 || report.Enriched != 2 || report.Summarized != 2 {
		t.Fatalf("unexpected stage counts: %+v", report)
	}
	if report.Delivered != 1 {
		t.Fatalf("limit=1 must deliver exactly one story, got %d", report.Delivered)
	}
	if len(f.sender.digests) != 1 || len(f.sender.digests[0].Items) != 1 {
		t.Fatalf("expected a single-story digest, got %+v", f.sender.digests)
	}
	if got := f.sender.digests[0].Items[0].Item.URL; got != "https://example.com/x" {
		t.Fatalf("profile topic must pick the systems story, got %s", got)
	}
	if len(f.events.reports) != 1 || f.events.reports[0].Phase != domain.PhaseDone {
		t.Fatalf("expected published run report, got %+v", f.events.reports)
	}

	// Next scheduled run: no new content, the delivered story is sent, and
	// the runner-up has aged out of the window.
	f.fetcher.items = map[string][]domain.RawItem{}
	f.advance(6 * time.Hour)
	report, err = f.pipeline.Run(context.Background(), 24*time.Hour, 1)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Delivered != 0 || len(f.sender.digests) != 1 {
		t.Fatalf("expected an empty second digest, got %+v", report)
	}
}

func TestPipelineStateSurvivesReruns(t *testing.T) {
	f := newPipelineFixture(t)

	if _, err := f.pipeline.Run(context.Background(), 24*time.Hour, 10); err != nil {
		t.Fatalf("first run: %v", err)
	}
	itemX, err := f.store.GetByURL(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("get x: %v", err)
	}
	if itemX.ProcessingState != domain.ProcessingSummarized {
		t.Fatalf("expected summarized, got %s", itemX.ProcessingState)
	}

	// The same raw item arrives again with a fresher title.
	published := f.now.Add(-2 * time.Hour)
	f.fetcher.items = map[string][]domain.RawItem{
		"systems-blog": {{URL: "https://example.com/x", Title: "Raft, revisited", PublishedAt: &published}},
	}
	report, err := f.pipeline.Run(context.Background(), 24*time.Hour, 10)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Ingested.Updated != 1 || report.Ingested.Created != 0 {
		t.Fatalf("expected a metadata update, got %+v", report.Ingested)
	}

	itemX, err = f.store.GetByURL(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("get x again: %v", err)
	}
	if itemX.Title != "Raft, revisited" {
		t.Fatalf("expected refreshed title, got %q", itemX.Title)
	}
	if itemX.ProcessingState != domain.ProcessingSummarized {
		t.Fatalf("processing state must never regress, got %s", itemX.ProcessingState)
	}
	if itemX.DeliveryState != domain.DeliverySent {
		t.Fatalf("delivery state must never regress, got %s", itemX.DeliveryState)
	}
}

func TestPipelineReclaimsStuckDeliveries(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.items = map[string][]domain.RawItem{}

	stuck := f.store.seed(domain.Item{
		SourceID:        1,
		URL:             "https://example.com/stuck",
		Title:           "Stuck in sending",
		Summary:         strptr("got claimed, never committed"),
		PublishedAt:     timeptr(f.now.Add(-3 * time.Hour)),
		ScrapedAt:       f.now.Add(-3 * time.Hour),
		ProcessingState: domain.ProcessingSummarized,
		DeliveryState:   domain.DeliverySending,
	})
	// Claimed two hours ago, one hour beyond the recovery interval.
	f.store.claimedAt[stuck] = f.now.Add(-2 * time.Hour)

	report, err := f.pipeline.Run(context.Background(), 24*time.Hour, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Delivered != 1 {
		t.Fatalf("reclaimed item must be redelivered, got %d", report.Delivered)
	}
	if f.store.get(stuck).DeliveryState != domain.DeliverySent {
		t.Fatalf("expected sent after reclaim, got %s", f.store.get(stuck).DeliveryState)
	}
}

func TestPipelineFailsOnStorageError(t *testing.T) {
	f := newPipelineFixture(t)
	f.store.listErr = errors.New("connection reset")

	report, err := f.pipeline.Run(context.Background(), 24*time.Hour, 10)
	if !domain.IsKind(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage-unavailable, got %v", err)
	}
	if report.Phase != domain.PhaseFailed {
		t.Fatalf("expected failed phase, got %s", report.Phase)
	}
	if len(f.events.reports) != 1 || f.events.reports[0].Phase != domain.PhaseFailed {
		t.Fatalf("failed runs must still publish their report, got %+v", f.events.reports)
	}
}

func TestPipelineSourceListErrorIsFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.pipeline.sources = &sourceStoreFake{listErr: errors.New("no route to host")}

	report, err := f.pipeline.Run(context.Background(), 24*time.Hour, 10)
	if !domain.IsKind(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage-unavailable, got %v", err)
	}
	if report.Phase != domain.PhaseFailed {
		t.Fatalf("expected failed phase, got %s", report.Phase)
	}
}
